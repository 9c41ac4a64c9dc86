package thing

// defaultPropertyOps applies to property forms that declare no op list.
var defaultPropertyOps = Ops{OpReadProperty, OpWriteProperty}

// FormsFor returns the forms declaring op, in declaration order. Forms with
// no op list are treated as declaring defaults.
func FormsFor(forms []Form, op Op, defaults Ops) []Form {
	var out []Form
	for _, f := range forms {
		ops := f.Op
		if len(ops) == 0 {
			ops = defaults
		}
		for _, o := range ops {
			if o == op {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// FormsFor groups this property's forms by op.
func (p *Property) FormsFor(op Op) []Form {
	return FormsFor(p.Forms, op, defaultPropertyOps)
}

// FormsFor returns the forms usable for invoking the action.
func (a *Action) FormsFor(op Op) []Form {
	return FormsFor(a.Forms, op, Ops{OpInvokeAction})
}

// FormsFor returns the forms usable for subscribing to the event.
func (e *Event) FormsFor(op Op) []Form {
	return FormsFor(e.Forms, op, Ops{OpSubscribeEvent})
}
