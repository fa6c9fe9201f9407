package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

var reviewArgs = []string{
	"review",
	"--type", "Concrete Mix",
	"--description", "Ready-mix for level 2 slab",
	"--specifications", "C32/40, 28-day strength 35 MPa",
}

func TestReviewCmd_Flags(t *testing.T) {
	for _, name := range []string{"type", "description", "specifications", "specifications-file", "input", "json"} {
		assert.NotNil(t, reviewCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "t", reviewCmd.Flags().Lookup("type").Shorthand)
}

func TestReview_RendersVerdict(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(reviewArgs...)
	require.NoError(t, err)

	assert.Contains(t, out, "APPROVED")
	assert.Contains(t, out, "confidence 90%")
	assert.Contains(t, out, "[1] concrete.txt p.1")
	assert.Equal(t, domain.SubmittalRequest{
		Type:           "Concrete Mix",
		Description:    "Ready-mix for level 2 slab",
		Specifications: "C32/40, 28-day strength 35 MPa",
	}, env.review.lastReq)
	assert.Equal(t, 1, env.knowledge.builds)
	assert.Equal(t, 1, env.closed)
}

func TestReview_JSON(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(append(reviewArgs, "--json")...)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "APPROVED", got["decision"])
	assert.Equal(t, "rev-1", got["review_id"])
}

func TestReview_InvalidInputSkipsServices(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("review", "--type", "Concrete", "--description", "slab")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "specifications", verr.Field)
	assert.Equal(t, 0, env.knowledge.builds)
}

func TestReview_StageFailure(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	env.review.result = nil
	env.review.err = &domain.StageError{Stage: domain.StageInit, Kind: domain.ErrRetrieval, Err: domain.ErrKnowledgeBaseNotReady}

	_, err := execute(reviewArgs...)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetrieval)
}

func TestReview_StageFailureJSON(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	env.review.result = nil
	env.review.err = &domain.StageError{Stage: domain.StageAnalyzed, Kind: domain.ErrDecision, Err: errors.New("unparseable")}

	out, err := execute(append(reviewArgs, "--json")...)
	require.Error(t, err)

	var reported reportedError
	assert.ErrorAs(t, err, &reported)
	assert.ErrorIs(t, err, domain.ErrDecision)

	var got struct {
		Error struct {
			Code    string `json:"code"`
			Stage   string `json:"stage"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "decision_failed", got.Error.Code)
	assert.Equal(t, "analyzed", got.Error.Stage)
	assert.Contains(t, got.Error.Message, "unparseable")
}

func TestReview_KnowledgeUnavailableStillReviews(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	env.knowledge.err = errors.New("embedding service down")

	_, err := execute(reviewArgs...)
	require.NoError(t, err)
	assert.Equal(t, "Concrete Mix", env.review.lastReq.Type)
}

func TestReviewRequest_Sources(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "submittal.json")
	require.NoError(t, os.WriteFile(input,
		[]byte(`{"type":"Rebar","description":"Level 3 slab bars","specifications":"Grade 500B"}`), 0o600))
	specs := filepath.Join(dir, "specs.txt")
	require.NoError(t, os.WriteFile(specs, []byte("Grade 500B, 16mm"), 0o600))

	t.Run("input file", func(t *testing.T) {
		env, cleanup := setupTestServices()
		defer cleanup()

		_, err := execute("review", "--input", input)
		require.NoError(t, err)
		assert.Equal(t, "Rebar", env.review.lastReq.Type)
		assert.Equal(t, "Grade 500B", env.review.lastReq.Specifications)
	})

	t.Run("flags override input", func(t *testing.T) {
		env, cleanup := setupTestServices()
		defer cleanup()

		_, err := execute("review", "--input", input, "--type", "Reinforcement")
		require.NoError(t, err)
		assert.Equal(t, "Reinforcement", env.review.lastReq.Type)
		assert.Equal(t, "Level 3 slab bars", env.review.lastReq.Description)
	})

	t.Run("specifications file", func(t *testing.T) {
		env, cleanup := setupTestServices()
		defer cleanup()

		_, err := execute("review", "--input", input, "--specifications-file", specs)
		require.NoError(t, err)
		assert.Equal(t, "Grade 500B, 16mm", env.review.lastReq.Specifications)
	})

	t.Run("stdin", func(t *testing.T) {
		env, cleanup := setupTestServices()
		defer cleanup()

		rootCmd.SetIn(strings.NewReader(`{"type":"Glazing","description":"Curtain wall","specifications":"U 1.6"}`))
		defer rootCmd.SetIn(nil)
		buf := new(bytes.Buffer)
		rootCmd.SetOut(buf)
		rootCmd.SetArgs([]string{"review", "--input", "-"})
		defer rootCmd.SetArgs(nil)

		require.NoError(t, rootCmd.ExecuteContext(context.Background()))
		assert.Equal(t, "Glazing", env.review.lastReq.Type)
	})

	t.Run("malformed input", func(t *testing.T) {
		_, cleanup := setupTestServices()
		defer cleanup()

		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{"type":`), 0o600))

		_, err := execute("review", "--input", bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("missing input file", func(t *testing.T) {
		_, cleanup := setupTestServices()
		defer cleanup()

		_, err := execute("review", "--input", filepath.Join(dir, "absent.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read input")
	})
}

func TestReview_SpecificationFlagsAreExclusive(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("review", "--type", "a", "--description", "b",
		"--specifications", "c", "--specifications-file", "d")
	assert.Error(t, err)
}
