package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/opbuilder/internal/asset"
	"github.com/solatis/opbuilder/internal/core/db"
	"github.com/solatis/opbuilder/internal/defs"
	"github.com/solatis/opbuilder/internal/rules"
	"github.com/solatis/opbuilder/internal/types"
)

var checkCmd = &cobra.Command{
	Use:   "check <asset-file> [events.jsonl]",
	Short: "Evaluate an asset against newline-delimited JSON events",
	Long: `check compiles an asset file and evaluates it against each line of the
events file (standard input when omitted), printing one JSON result per line.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().String("definitions", "", "YAML or JSON definitions file")
	checkCmd.Flags().String("definition-set", "", "stored definition set to bind")
	checkCmd.MarkFlagsMutuallyExclusive("definitions", "definition-set")
}

// checkResult is one output line.
type checkResult struct {
	Line       int          `json:"line"`
	Matched    bool         `json:"matched"`
	FailedTerm string       `json:"failed_term,omitempty"`
	Traces     []string     `json:"traces,omitempty"`
	Event      *types.Event `json:"event,omitempty"`
	Error      string       `json:"error,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	d, err := checkDefinitions(cmd)
	if err != nil {
		return err
	}

	a, err := asset.LoadFile(args[0])
	if err != nil {
		return err
	}
	engine, err := rules.NewEngine(d, rules.WithLogger(logger))
	if err != nil {
		return err
	}
	expr, err := asset.Compile(a, engine)
	if err != nil {
		return err
	}

	in := io.Reader(cmd.InOrStdin())
	if len(args) == 2 {
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("failed to open events: %w", err)
		}
		defer f.Close()
		in = f
	}

	return evaluateLines(expr, in, cmd.OutOrStdout())
}

// evaluateLines runs expr over each non-empty JSONL line. Bad lines are
// reported in the output and do not stop the run.
func evaluateLines(expr *rules.Expression, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), types.MaxPayloadSize+1)
	enc := json.NewEncoder(out)

	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		res := checkResult{Line: line}
		event, err := types.ParseEvent(scanner.Bytes())
		if err == nil {
			var r rules.ExpressionResult
			r, err = expr.Evaluate(event)
			res.Matched, res.FailedTerm, res.Traces, res.Event = r.Matched, r.FailedTerm, r.Traces, r.Event
		}
		if err != nil {
			res.Error = err.Error()
			res.Event = nil
		}

		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func checkDefinitions(cmd *cobra.Command) (defs.Definitions, error) {
	file, _ := cmd.Flags().GetString("definitions")
	set, _ := cmd.Flags().GetString("definition-set")

	switch {
	case file != "":
		return readDefinitionsFile(file)
	case set != "":
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		database, err := openMigrated(cmd.Context(), cfg)
		if err != nil {
			return nil, err
		}
		defer database.Close()

		store, err := db.NewDefinitionStore(database)
		if err != nil {
			return nil, err
		}
		return store.Load(cmd.Context(), set)
	default:
		return defs.Empty(), nil
	}
}
