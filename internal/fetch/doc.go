// Package fetch implements the resilient JSON fetch layer: bounded retries
// with exponential backoff, classification of failed attempts into retryable
// and terminal, and a per-attempt timeout race built on the platform timer
// so the same loop runs on both supported runtimes.
//
// The one logical operation is [GetJSON]:
//
//	f := fetch.New(fetch.WithSettings(fetch.DefaultSettings().WithMaxRetries(2)))
//	quote, err := fetch.GetJSON[PriceResponse](ctx, f, url)
//
// A fetch makes at most MaxRetries+1 attempts. The initial attempt never
// sleeps; retry n sleeps BaseBackoff*2^(n-1) first. A 4xx status or an
// undecodable body fails immediately; transport errors, timeouts and 5xx
// statuses are retried until the budget runs out.
package fetch
