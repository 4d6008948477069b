// Package restyutil writes full HTTP exchanges of a resty client somewhere
// for offline inspection. Credentials, cookies and csrf tokens are redacted.
package restyutil

import (
	"fmt"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

// DumpExchanges writes every completed exchange of client to output, a nil
// output makes it a no-op.
func DumpExchanges(client *resty.Client, output Output) {
	if output == nil {
		return
	}
	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		if res.Request == nil || res.Request.RawRequest == nil || res.RawResponse == nil {
			return nil
		}
		id := atomic.AddUint64(&counter, 1)
		output.Write(
			fmt.Sprintf("%04d-%s", id, res.Request.Method),
			formatHttpMessage(res),
		)
		return nil
	})
}
