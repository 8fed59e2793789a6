package refactor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// fetchFunc builds the sandbox's fetch global: a synchronous, non-streaming
// HTTP call modeled on the browser API. Requests abort when the run's
// coordinator fires.
//
// Options: method (default GET), headers, body, timeout (seconds, default 30).
// Response: status, ok, statusText, url, headers (lowercase keys), text(),
// json().
func fetchFunc(s *Session, runtime *goja.Runtime) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if err := s.checkActive(); err != nil {
			panic(runtime.NewGoError(err))
		}
		url := call.Argument(0).String()

		method := http.MethodGet
		timeout := 30 * time.Second
		var bodyReader io.Reader
		var reqHeaders map[string]interface{}

		if len(call.Arguments) > 1 && !goja.IsUndefined(call.Arguments[1]) && !goja.IsNull(call.Arguments[1]) {
			if opts, ok := call.Arguments[1].Export().(map[string]interface{}); ok {
				if m, ok := opts["method"].(string); ok {
					method = strings.ToUpper(m)
				}
				if t, ok := opts["timeout"]; ok {
					switch v := t.(type) {
					case int64:
						timeout = time.Duration(v) * time.Second
					case float64:
						timeout = time.Duration(v * float64(time.Second))
					}
				}
				if b, ok := opts["body"].(string); ok {
					bodyReader = strings.NewReader(b)
				}
				if h, ok := opts["headers"].(map[string]interface{}); ok {
					reqHeaders = h
				}
			}
		}

		callCtx, stop := s.callContext()
		defer stop()
		callCtx, cancelTimeout := context.WithTimeout(callCtx, timeout)
		defer cancelTimeout()

		req, err := http.NewRequestWithContext(callCtx, method, url, bodyReader)
		if err != nil {
			panic(runtime.NewGoError(err))
		}
		for k, v := range reqHeaders {
			if sv, ok := v.(string); ok {
				req.Header.Set(k, sv)
			}
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			if s.coord.IsCancelled() {
				panic(runtime.NewGoError(ErrCancelled))
			}
			panic(runtime.NewGoError(err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			panic(runtime.NewGoError(err))
		}

		result := runtime.NewObject()
		_ = result.Set("status", resp.StatusCode)
		_ = result.Set("ok", resp.StatusCode >= 200 && resp.StatusCode < 300)
		_ = result.Set("statusText", resp.Status)
		_ = result.Set("url", resp.Request.URL.String())

		headersObj := runtime.NewObject()
		for k, v := range resp.Header {
			if len(v) == 1 {
				_ = headersObj.Set(strings.ToLower(k), v[0])
			} else {
				_ = headersObj.Set(strings.ToLower(k), strings.Join(v, ", "))
			}
		}
		_ = result.Set("headers", headersObj)

		bodyStr := string(body)
		_ = result.Set("text", func() string { return bodyStr })
		_ = result.Set("json", func() goja.Value {
			var parsed interface{}
			if err := json.Unmarshal(body, &parsed); err != nil {
				panic(runtime.NewGoError(err))
			}
			return runtime.ToValue(parsed)
		})

		return result
	}
}
