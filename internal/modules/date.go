package modules

import (
	"time"

	"github.com/funvibe/rigz/internal/vm"
)

// Date works on unix-second timestamps so dates stay plain numbers in
// scripts; format and parse bridge to RFC 3339 or a custom Go layout.
func Date() *NativeModule {
	m := NewNativeModule("Date")
	m.Fn("now() -> Number", dateNow)
	m.Fn("now_millis() -> Number", dateNowMillis)
	m.Fn("format(timestamp, layout) -> String", dateFormat)
	m.Fn("parse(text, layout) -> Number", dateParse)
	return m
}

func dateNow(args []vm.Value) (vm.Value, *vm.VMError) {
	if err := exactArgs("Date.now", args, 0); err != nil {
		return vm.None(), err
	}
	return vm.IntValue(time.Now().Unix()), nil
}

func dateNowMillis(args []vm.Value) (vm.Value, *vm.VMError) {
	if err := exactArgs("Date.now_millis", args, 0); err != nil {
		return vm.None(), err
	}
	return vm.IntValue(time.Now().UnixMilli()), nil
}

func dateFormat(args []vm.Value) (vm.Value, *vm.VMError) {
	if err := atLeastArgs("Date.format", args, 1); err != nil {
		return vm.None(), err
	}
	ts, err := numberArg("Date.format", args, 0)
	if err != nil {
		return vm.None(), err
	}
	layout := time.RFC3339
	if len(args) > 1 {
		layout, err = stringArg("Date.format", args, 1)
		if err != nil {
			return vm.None(), err
		}
	}
	return vm.StringValue(time.Unix(ts.ToInt(), 0).UTC().Format(layout)), nil
}

func dateParse(args []vm.Value) (vm.Value, *vm.VMError) {
	text, err := stringArg("Date.parse", args, 0)
	if err != nil {
		return vm.None(), err
	}
	layout := time.RFC3339
	if len(args) > 1 {
		layout, err = stringArg("Date.parse", args, 1)
		if err != nil {
			return vm.None(), err
		}
	}
	t, parseErr := time.Parse(layout, text)
	if parseErr != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "Date.parse: %s", parseErr)
	}
	return vm.IntValue(t.Unix()), nil
}
