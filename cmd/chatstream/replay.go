package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/namikmesic/chatstream/internal/stream"
	"github.com/namikmesic/chatstream/internal/transcript"
)

var (
	replayChunk  int
	replayFormat string
)

var replayCmd = &cobra.Command{
	Use:   "replay <file|->",
	Short: "Fold a captured event stream into its final transcript state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		res, err := replay(in, replayChunk, transcript.Reducer{})
		if err != nil {
			return err
		}

		return writeResult(cmd.OutOrStdout(), res, replayFormat)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().IntVar(&replayChunk, "chunk", 4096, "Read size in bytes, to exercise framing across chunk boundaries")
	replayCmd.Flags().StringVar(&replayFormat, "format", "json", "Output format: json or yaml")
}

type replayResult struct {
	State        transcript.State `json:"state"`
	Frames       int              `json:"frames"`
	Skipped      int              `json:"skipped"`
	DroppedBytes int              `json:"droppedBytes"`
}

// replay decodes r in reads of at most chunk bytes and folds every mapped
// action into a fresh state.
func replay(r io.Reader, chunk int, reducer transcript.Reducer) (replayResult, error) {
	if chunk <= 0 {
		return replayResult{}, fmt.Errorf("chunk must be positive, got %d", chunk)
	}

	var res replayResult
	dec := stream.NewDecoder()
	buf := make([]byte, chunk)

	for {
		n, err := r.Read(buf)
		for _, f := range dec.Feed(buf[:n]) {
			res.Frames++
			action, ok := stream.MapFrame(f)
			if !ok {
				res.Skipped++
				log.Debug().Int("index", f.Index).Str("type", stream.TypeOf(f.Data)).Msg("skipping unrecognized frame")
				continue
			}
			res.State = reducer.Apply(res.State, action)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}
	}

	res.DroppedBytes = dec.Close()
	return res, nil
}

// writeResult encodes res as indented JSON or as YAML. YAML goes through the
// JSON form so both formats share key names and raw tool payloads stay
// structured.
func writeResult(w io.Writer, res replayResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		raw, err := json.Marshal(res)
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
