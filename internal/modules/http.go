package modules

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/funvibe/rigz/internal/vm"
)

// HTTP is a client-only module: get and post return body strings, status
// codes surface as RuntimeError when the server answers outside 2xx.
func HTTP() *NativeModule {
	m := NewNativeModule("HTTP")
	m.Fn("get(url) -> String", httpGet)
	m.Fn("post(url, body) -> String", httpPost)
	return m
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

func httpGet(args []vm.Value) (vm.Value, *vm.VMError) {
	url, err := stringArg("HTTP.get", args, 0)
	if err != nil {
		return vm.None(), err
	}
	resp, httpErr := httpClient.Get(url)
	if httpErr != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "HTTP.get: %s", httpErr)
	}
	return readBody("HTTP.get", resp)
}

func httpPost(args []vm.Value) (vm.Value, *vm.VMError) {
	url, err := stringArg("HTTP.post", args, 0)
	if err != nil {
		return vm.None(), err
	}
	if err := exactArgs("HTTP.post", args, 2); err != nil {
		return vm.None(), err
	}
	body := args[1].String()
	contentType := "text/plain"
	if args[1].Kind == vm.MapKind || args[1].Kind == vm.ListKind {
		encoded, jsonErr := jsonGenerate(args[1:2])
		if jsonErr != nil {
			return vm.None(), jsonErr
		}
		body = encoded.AsString()
		contentType = "application/json"
	}
	resp, httpErr := httpClient.Post(url, contentType, strings.NewReader(body))
	if httpErr != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "HTTP.post: %s", httpErr)
	}
	return readBody("HTTP.post", resp)
}

func readBody(fn string, resp *http.Response) (vm.Value, *vm.VMError) {
	defer resp.Body.Close()
	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "%s: %s", fn, readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return vm.None(), vm.Errorf(vm.RuntimeError, "%s: status %d: %s", fn, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return vm.StringValue(string(data)), nil
}
