package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/meetsmatch/matchengine/internal/database"
	"github.com/meetsmatch/matchengine/internal/matching"
	"github.com/meetsmatch/matchengine/internal/monitoring"
)

const usage = `usage: matchengine <command> [flags] [args]

commands:
  score <user-a> <user-b>             compatibility score of a pair
  match <user-a> <user-b>             create a match when the pair qualifies
  interest [-kind like|super_like] <from> <to>
                                      record an interest and attempt a match
  recommend [-mode content|collaborative|hybrid|discover] [-limit N] [-record] <user>
                                      ranked candidates for a user
  unmatch <match-id> <user>           dissolve a match on behalf of a party
  matches <user>                      list a user's active matches
  history [-limit N] <user>           recent recommendations made to a user
  health                              check database and redis connectivity
`

var errUsage = errors.New("invalid usage")

// command is one parsed CLI invocation
type command struct {
	name   string
	args   []string
	mode   string
	limit  int
	record bool
	kind   string

	// limitSet reports an explicit -limit; otherwise the configured default applies
	limitSet bool
}

var positionalArgs = map[string]int{
	"score":     2,
	"match":     2,
	"interest":  2,
	"recommend": 1,
	"unmatch":   2,
	"matches":   1,
	"history":   1,
	"health":    0,
}

func parseCommand(args []string, stderr io.Writer) (*command, error) {
	if len(args) == 0 {
		return nil, errUsage
	}

	cmd := &command{name: args[0]}
	want, ok := positionalArgs[cmd.name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", errUsage, cmd.name)
	}

	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	switch cmd.name {
	case "recommend":
		fs.StringVar(&cmd.mode, "mode", matching.SourceHybrid, "content, collaborative, hybrid or discover")
		fs.IntVar(&cmd.limit, "limit", matching.DefaultLimit, "maximum number of candidates")
		fs.BoolVar(&cmd.record, "record", false, "persist the returned recommendations")
	case "history":
		fs.IntVar(&cmd.limit, "limit", matching.DefaultLimit, "maximum number of rows")
	case "interest":
		fs.StringVar(&cmd.kind, "kind", string(database.InterestLike), "like or super_like")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "limit" {
			cmd.limitSet = true
		}
	})
	if cmd.limit < 0 {
		return nil, fmt.Errorf("%w: -limit must not be negative", errUsage)
	}

	cmd.args = fs.Args()
	if len(cmd.args) != want {
		return nil, fmt.Errorf("%w: %s takes %d argument(s), got %d", errUsage, cmd.name, want, len(cmd.args))
	}

	if cmd.name == "recommend" {
		switch cmd.mode {
		case matching.SourceContent, matching.SourceCollaborative, matching.SourceHybrid, matching.SourceDiscovery:
		default:
			return nil, fmt.Errorf("%w: unknown mode %q", errUsage, cmd.mode)
		}
	}
	return cmd, nil
}

// scoreOutput is printed by the score command
type scoreOutput struct {
	UserA         string                  `json:"user_a"`
	UserB         string                  `json:"user_b"`
	Score         float64                 `json:"score"`
	Compatibility *matching.Compatibility `json:"details"`
}

// recommendOutput is printed by the recommend command
type recommendOutput struct {
	UserID          string                     `json:"user_id"`
	Mode            string                     `json:"mode"`
	Recommendations []matching.Recommendation  `json:"recommendations"`
	Recorded        []*database.Recommendation `json:"recorded,omitempty"`
}

// engineAPI is the part of the engine the CLI drives
type engineAPI interface {
	Evaluate(ctx context.Context, a, b string) (*matching.Compatibility, error)
	TryCreateMatch(ctx context.Context, a, b string) (*matching.MatchResult, error)
	ExpressInterest(ctx context.Context, from, to string, kind database.InterestKind) (*matching.InterestResult, error)
	RecommendContent(ctx context.Context, userID string, limit int) ([]matching.Recommendation, error)
	RecommendCollaborative(ctx context.Context, userID string, limit int) ([]matching.Recommendation, error)
	RecommendHybrid(ctx context.Context, userID string, limit int) ([]matching.Recommendation, error)
	FindPotentialMatches(ctx context.Context, userID string, limit int) ([]matching.Recommendation, error)
	ListMatches(ctx context.Context, userID string) ([]*database.Match, error)
	Unmatch(ctx context.Context, matchID, userID string) (*database.Match, error)
	RecordRecommendations(ctx context.Context, userID string, recs []matching.Recommendation) ([]*database.Recommendation, error)
	RecommendationHistory(ctx context.Context, userID string, limit int) ([]*database.Recommendation, error)
}

var _ engineAPI = (*matching.Engine)(nil)

// healthAPI runs dependency checks
type healthAPI interface {
	Check(ctx context.Context) monitoring.HealthResponse
}

var errUnhealthy = errors.New("service is unhealthy")

func execute(ctx context.Context, engine engineAPI, health healthAPI, cmd *command, out io.Writer) error {
	var result interface{}

	switch cmd.name {
	case "score":
		c, err := engine.Evaluate(ctx, cmd.args[0], cmd.args[1])
		if err != nil {
			return err
		}
		result = scoreOutput{UserA: cmd.args[0], UserB: cmd.args[1], Score: c.Score, Compatibility: c}

	case "match":
		res, err := engine.TryCreateMatch(ctx, cmd.args[0], cmd.args[1])
		if err != nil {
			return err
		}
		result = res

	case "interest":
		res, err := engine.ExpressInterest(ctx, cmd.args[0], cmd.args[1], database.InterestKind(cmd.kind))
		if err != nil {
			return err
		}
		result = res

	case "recommend":
		recs, err := recommend(ctx, engine, cmd)
		if err != nil {
			return err
		}
		result = recs

	case "unmatch":
		m, err := engine.Unmatch(ctx, cmd.args[0], cmd.args[1])
		if err != nil {
			return err
		}
		result = m

	case "matches":
		matches, err := engine.ListMatches(ctx, cmd.args[0])
		if err != nil {
			return err
		}
		result = matches

	case "history":
		recs, err := engine.RecommendationHistory(ctx, cmd.args[0], cmd.limit)
		if err != nil {
			return err
		}
		result = recs

	case "health":
		res := health.Check(ctx)
		if err := writeJSON(out, res); err != nil {
			return err
		}
		if res.Status == monitoring.HealthStatusUnhealthy {
			return errUnhealthy
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd.name)
	}

	return writeJSON(out, result)
}

func recommend(ctx context.Context, engine engineAPI, cmd *command) (*recommendOutput, error) {
	userID := cmd.args[0]

	var (
		recs []matching.Recommendation
		err  error
	)
	switch cmd.mode {
	case matching.SourceContent:
		recs, err = engine.RecommendContent(ctx, userID, cmd.limit)
	case matching.SourceCollaborative:
		recs, err = engine.RecommendCollaborative(ctx, userID, cmd.limit)
	case matching.SourceDiscovery:
		recs, err = engine.FindPotentialMatches(ctx, userID, cmd.limit)
	default:
		recs, err = engine.RecommendHybrid(ctx, userID, cmd.limit)
	}
	if err != nil {
		return nil, err
	}

	out := &recommendOutput{UserID: userID, Mode: cmd.mode, Recommendations: recs}
	if cmd.record {
		out.Recorded, err = engine.RecordRecommendations(ctx, userID, recs)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
