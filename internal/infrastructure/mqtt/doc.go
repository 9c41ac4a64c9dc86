// Package mqtt provides MQTT client sessions for the Gray Logic WoT service.
//
// Two kinds of session use this package:
//   - the Gray Logic internal bus, where device state, events and action
//     status are published for the rest of the system (OptionsFromConfig)
//   - per-Thing broker sessions opened by the MQTT protocol binding for
//     forms whose href uses the mqtt:// or mqtts:// scheme
//
// Both get auto-reconnect with subscription restoration, panic-safe handler
// dispatch, and several handlers per topic filter.
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, mqtt.OptionsFromConfig(cfg.MQTT))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	id, err := client.Subscribe(mqtt.Topics{}.AllStates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("%s = %s", topic, payload)
//	        return nil
//	    })
//	defer client.Unsubscribe(mqtt.Topics{}.AllStates(), id)
//
// # Security Considerations
//
//   - Use ssl:// (or mqtts:// in Thing forms) outside of trusted networks
//   - Credentials for the internal bus come from config or environment
package mqtt
