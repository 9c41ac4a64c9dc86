// Package thing models Thing descriptions: the JSON documents in which a
// networked device declares its properties, actions and events together with
// the forms (transport endpoints) through which each interaction is reached.
//
// This package manages:
//   - Parsing description documents holding one Thing or an array of Things
//   - Form decoding (op as a single string or a list, htv:methodName)
//   - Resolution of relative form hrefs against base or the document URL
//   - Normalisation of action uriVariables into an input object schema
//   - Content digests used to detect unchanged re-fetches
//   - Deterministic device identity derived from a Thing's URL
//
// The package is pure data; it performs no I/O.
//
// Usage:
//
//	doc, err := thing.Parse(raw, "http://lamp.local/things/lamp")
//	if err != nil {
//	    return err
//	}
//	for _, d := range doc.Things {
//	    fmt.Println(d.DeviceID(), d.Title)
//	}
package thing
