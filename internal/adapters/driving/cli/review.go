package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/submittal-review/internal/adapters/driving/boundary"
	"github.com/custodia-labs/submittal-review/internal/adapters/driving/render"
	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/logger"
)

var (
	reviewType      string
	reviewDesc      string
	reviewSpecs     string
	reviewSpecsFile string
	reviewInput     string
	reviewJSON      bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review a submittal against the standards",
	Long: `Runs one submittal through retrieval, analysis and decision, then prints
the verdict with citations into the standards corpus.

The submittal is given with flags, or as a JSON object with --input:
  {"type": "...", "description": "...", "specifications": "..."}

Examples:
  submittal review --type "Concrete Mix" \
    --description "Ready-mix for level 2 slab" \
    --specifications "C32/40, 28-day strength 35 MPa"

  submittal review --input submittal.json --json`,
	Args: cobra.NoArgs,
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewType, "type", "t", "", "submittal type or category")
	reviewCmd.Flags().StringVarP(&reviewDesc, "description", "d", "", "submittal description")
	reviewCmd.Flags().StringVarP(&reviewSpecs, "specifications", "s", "", "specification block")
	reviewCmd.Flags().StringVar(&reviewSpecsFile, "specifications-file", "", "read the specification block from a file")
	reviewCmd.Flags().StringVarP(&reviewInput, "input", "i", "", "read the submittal as JSON from a file (- for stdin)")
	reviewCmd.Flags().BoolVar(&reviewJSON, "json", false, "output the result as JSON")
	reviewCmd.MarkFlagsMutuallyExclusive("specifications", "specifications-file")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, _ []string) error {
	req, err := reviewRequest(cmd)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	svc, _, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.close()

	if _, err := svc.Knowledge.GetOrBuild(cmd.Context()); err != nil {
		logger.Warn("Knowledge base unavailable: %v", err)
	}

	result, err := svc.Review.Review(cmd.Context(), req)
	if err != nil {
		if reviewJSON {
			if werr := writeJSON(cmd.OutOrStdout(), map[string]any{"error": boundary.Classify(err)}); werr != nil {
				return werr
			}
			return reportedError{err}
		}
		return err
	}

	if reviewJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	render.New(cmd.OutOrStdout()).Review(result)
	return nil
}

// reviewRequest assembles the submittal from --input or the field flags.
func reviewRequest(cmd *cobra.Command) (domain.SubmittalRequest, error) {
	var req domain.SubmittalRequest

	if reviewInput != "" {
		data, err := readInput(cmd.InOrStdin(), reviewInput)
		if err != nil {
			return req, err
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return req, &domain.ValidationError{Field: "input", Reason: err.Error()}
		}
	}

	if cmd.Flags().Changed("type") {
		req.Type = reviewType
	}
	if cmd.Flags().Changed("description") {
		req.Description = reviewDesc
	}
	if cmd.Flags().Changed("specifications") {
		req.Specifications = reviewSpecs
	}
	if reviewSpecsFile != "" {
		data, err := os.ReadFile(reviewSpecsFile)
		if err != nil {
			return req, fmt.Errorf("read specifications: %w", err)
		}
		req.Specifications = string(data)
	}
	return req, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
