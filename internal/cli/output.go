package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/redpwn/gitpow/internal/miner"
)

// Report is the JSON form of a finished search.
type Report struct {
	Status     string `json:"status"`
	Iterations int    `json:"iterations"`
	Revision   string `json:"revision"`
	Previous   string `json:"previous"`
	Path       string `json:"path"`
	Digest     string `json:"digest"`
}

func newReport(res *miner.Result) Report {
	r := Report{
		Status:     string(res.Outcome),
		Iterations: res.Iterations,
		Revision:   res.Revision,
		Previous:   res.Previous,
	}
	if res.Record != nil {
		r.Path = res.Record.Path
		r.Digest = res.Record.Digest
	}
	return r
}

func render(w io.Writer, format string, res *miner.Result) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newReport(res))
	}
	var err error
	switch res.Outcome {
	case miner.Accepted:
		_, err = fmt.Fprintf(w, "Match on iteration: %d; %s\n", res.Iterations, res.Revision)
	case miner.Exhausted:
		_, err = fmt.Fprintln(w, "Maximum Tries Reached")
	default:
		err = fmt.Errorf("unknown outcome %q", res.Outcome)
	}
	return err
}
