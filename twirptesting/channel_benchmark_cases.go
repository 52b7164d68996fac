package twirptesting

import (
	"context"
	"fmt"
	"testing"

	"github.com/loov/hrtime"

	"github.com/hopin-team/twirp-go"
)

// RunChannelBenchmarkCases benchmarks round-trip latency over the given
// channel, once per encoding. The server side of the channel needs to have a
// *TestServer (in this package) registered to provide the implementation of
// twirptesting.TestService.
func RunChannelBenchmarkCases(b *testing.B, ch twirp.Channel) {
	b.Run("json", func(b *testing.B) {
		benchmarkEcho(b, NewTestServiceJSONClient(ch))
	})
	b.Run("protobuf", func(b *testing.B) {
		benchmarkEcho(b, NewTestServiceProtobufClient(ch))
	})
	b.Run("json_latency_histogram", func(b *testing.B) {
		benchmarkEchoHistogram(b, NewTestServiceJSONClient(ch))
	})
}

func benchmarkEcho(b *testing.B, cli TestService) {
	req := mustStruct(b, map[string]any{"payload": "a test payload"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rsp, err := cli.Echo(context.Background(), req)
		if err != nil {
			b.Fatalf("RPC failed: %v", err)
		}
		if got := stringField(rsp, "payload"); got != "a test payload" {
			b.Fatalf("wrong payload returned: expecting %q; got %q", "a test payload", got)
		}
	}
}

// benchmarkEchoHistogram reports the latency distribution rather than the
// mean, which surfaces tail behavior the standard benchmark output hides.
func benchmarkEchoHistogram(b *testing.B, cli TestService) {
	req := mustStruct(b, map[string]any{"payload": "a test payload"})
	bench := hrtime.NewBenchmark(10000)
	for bench.Next() {
		if _, err := cli.Echo(context.Background(), req); err != nil {
			b.Fatalf("RPC failed: %v", err)
		}
	}
	fmt.Println(bench.Histogram(10))
}
