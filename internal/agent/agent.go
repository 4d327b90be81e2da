package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/gorag/internal/evaluator"
	"github.com/dshills/gorag/internal/gate"
	"github.com/dshills/gorag/internal/generator"
	"github.com/dshills/gorag/internal/prompt"
	"github.com/dshills/gorag/internal/searcher"
	"github.com/dshills/gorag/internal/vectorcache"
	"github.com/dshills/gorag/pkg/types"
)

// ClarifyMessage is the reply when retrieval is not strong enough to answer.
const ClarifyMessage = "I’m not confident I found the right information.\n" +
	"Please clarify (e.g., name, topic, or what exactly you want), or rephrase your question."

// DefaultHistoryMessages is how many recent messages go into the prompt.
const DefaultHistoryMessages = 6

// ErrNoGenerator is the generation failure of an agent built without a
// generator.
var ErrNoGenerator = errors.New("no generator configured")

// Collection is a chunk sequence with its passage embedding matrix.
// Vectors[i] embeds Chunks[i]. Both are read-only once built.
type Collection struct {
	Chunks  []types.Chunk
	Vectors [][]float32
	Model   string
}

// LoadCollection returns chunks paired with their cached (or freshly built)
// passage embeddings.
func LoadCollection(ctx context.Context, cache *vectorcache.Cache, chunks []types.Chunk, model string) (*Collection, error) {
	vectors, err := cache.GetOrBuild(ctx, chunks, model)
	if err != nil {
		return nil, err
	}
	return &Collection{Chunks: chunks, Vectors: vectors, Model: model}, nil
}

// Len returns the number of chunks.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Chunks)
}

// Config holds the agent's dependencies.
type Config struct {
	Collection      *Collection
	Searcher        *searcher.Searcher
	Gate            *gate.Gate
	Generator       generator.Generator // optional
	Recorder        *evaluator.Recorder
	HistoryMessages int
	Logger          *zap.Logger
}

// Agent answers questions from a fixed collection: retrieve, gate, then
// either ask for clarification or generate a cited answer. Every turn is
// recorded. An Agent is safe for concurrent use; each Conversation carries
// its own memory.
type Agent struct {
	collection *Collection
	searcher   *searcher.Searcher
	gate       *gate.Gate
	generator  generator.Generator
	recorder   *evaluator.Recorder
	history    int
	logger     *zap.Logger
}

// New creates an agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Collection == nil {
		return nil, errors.New("agent requires a collection")
	}
	if cfg.Searcher == nil {
		return nil, errors.New("agent requires a searcher")
	}
	if cfg.Gate == nil {
		return nil, errors.New("agent requires a gate")
	}
	if cfg.Recorder == nil {
		return nil, errors.New("agent requires a recorder")
	}
	if cfg.HistoryMessages < 0 {
		return nil, fmt.Errorf("history messages must be >= 0, got %d", cfg.HistoryMessages)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Agent{
		collection: cfg.Collection,
		searcher:   cfg.Searcher,
		gate:       cfg.Gate,
		generator:  cfg.Generator,
		recorder:   cfg.Recorder,
		history:    cfg.HistoryMessages,
		logger:     cfg.Logger,
	}, nil
}

// Collection returns the collection the agent searches.
func (a *Agent) Collection() *Collection {
	return a.collection
}

// Gate returns the agent's confidence gate.
func (a *Agent) Gate() *gate.Gate {
	return a.gate
}

// Generator returns the generator, or nil.
func (a *Agent) Generator() generator.Generator {
	return a.generator
}

// Turn is the outcome of one question.
type Turn struct {
	ID          uuid.UUID
	Query       string
	Results     []types.RetrievalResult
	Decision    gate.Decision
	Answer      string
	Answered    bool   // a generated answer was returned
	Err         error  // retrieval or generation failure, reflected in Answer
	MetricsPath string // empty when recording failed
}

// Retrieve ranks the collection against query and applies the gate without
// generating an answer or recording a turn.
func (a *Agent) Retrieve(ctx context.Context, query string, k int) ([]types.RetrievalResult, gate.Decision, error) {
	query = strings.TrimSpace(query)
	results, err := a.searcher.Retrieve(ctx, query, a.collection.Chunks, a.collection.Vectors, k)
	if err != nil {
		return nil, gate.Decision{}, err
	}
	return results, a.gate.Decide(query, results), nil
}

// Ask runs one turn. Invalid input (empty query, k < 1) and caller
// cancellation during retrieval return an error and record nothing. Any
// other retrieval or generation failure is reported in the turn's Answer
// and Err and recorded like a normal turn. When conv is non-nil its recent
// messages give the generator context, and a successful answer is appended
// to it.
func (a *Agent) Ask(ctx context.Context, query string, k int, conv *Conversation) (*Turn, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, searcher.ErrEmptyQuery
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: %d", searcher.ErrInvalidK, k)
	}

	turn := &Turn{ID: uuid.New(), Query: query}

	results, err := a.searcher.Retrieve(ctx, query, a.collection.Chunks, a.collection.Vectors, k)
	switch {
	case err == nil:
		turn.Results = results
		turn.Decision = a.gate.Decide(query, results)
	case ctx.Err() != nil:
		return nil, err
	case errors.Is(err, searcher.ErrLengthMismatch):
		return nil, err
	default:
		turn.Results = []types.RetrievalResult{}
		turn.Decision = a.gate.Decide(query, nil)
		turn.Err = err
		turn.Answer = "ERROR: retrieval failed: " + err.Error()
		a.logger.Error("retrieval failed", zap.String("turn_id", turn.ID.String()), zap.Error(err))
	}

	if turn.Err == nil {
		if !turn.Decision.Answer {
			turn.Answer = ClarifyMessage
		} else {
			res := a.generate(ctx, query, results, conv)
			turn.Answer = res.Display()
			if res.OK() {
				turn.Answered = true
				if conv != nil {
					conv.Append(
						types.Message{Role: types.RoleUser, Content: query},
						types.Message{Role: types.RoleAssistant, Content: res.Text},
					)
				}
			} else {
				turn.Err = res.Err
				a.logger.Error("generation failed", zap.String("turn_id", turn.ID.String()), zap.Error(res.Err))
			}
		}
	}

	turn.MetricsPath = a.record(turn)

	a.logger.Info("turn complete",
		zap.String("turn_id", turn.ID.String()),
		zap.Int("results", len(turn.Results)),
		zap.Float64("top_score", turn.Decision.TopScore),
		zap.Float64("threshold", turn.Decision.Threshold),
		zap.Bool("vague", turn.Decision.Vague),
		zap.Bool("answered", turn.Answered),
		zap.Duration("duration", time.Since(start)))

	return turn, nil
}

func (a *Agent) generate(ctx context.Context, query string, results []types.RetrievalResult, conv *Conversation) generator.Result {
	if a.generator == nil {
		return generator.Failed(ErrNoGenerator)
	}
	p := prompt.Build(query, results)
	if conv != nil {
		p = prompt.WithHistory(conv.Recent(a.history), p)
	}
	return a.generator.Generate(ctx, p)
}

// record appends the turn's evaluation. A logging failure does not fail
// the turn.
func (a *Agent) record(turn *Turn) string {
	rec := evaluator.Evaluate(turn.Query, turn.Results, turn.Answer, turn.Decision.Threshold)
	rec.TurnID = turn.ID.String()
	path, err := a.recorder.Append(rec)
	if err != nil {
		a.logger.Error("failed to record turn", zap.String("turn_id", rec.TurnID), zap.Error(err))
		return ""
	}
	return path
}
