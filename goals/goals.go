// Package goals manages a user's financial goals through the provider's
// goal tools.
package goals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Sanidhya49/Invested/fimcp"
)

var (
	ErrGoalsNotFound = errors.New("goals not found")
	ErrGoalNotFound  = errors.New("goal not found")
	ErrAddFailed     = errors.New("failed to add goal")
)

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the Date for y-m-d.
func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(time.DateOnly))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// Goal is one financial goal.
type Goal struct {
	GoalID        uuid.UUID `json:"goal_id"`
	Title         string    `json:"title"`
	TargetDate    Date      `json:"target_date"`
	CurrentAmount float64   `json:"current_amount"`
	TargetAmount  float64   `json:"target_amount"`
}

// Update is a partial goal change; nil fields are left alone.
type Update struct {
	Title         *string  `json:"title,omitempty"`
	TargetDate    *Date    `json:"target_date,omitempty"`
	CurrentAmount *float64 `json:"current_amount,omitempty"`
	TargetAmount  *float64 `json:"target_amount,omitempty"`
}

// Validate checks the fields a new goal must carry.
func (g Goal) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return errors.New("title is required")
	}
	if g.TargetDate.IsZero() {
		return errors.New("target_date is required")
	}
	return nil
}

// Progress returns current/target as a percentage.
func Progress(g Goal) float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	return g.CurrentAmount / g.TargetAmount * 100
}

// EmergencyFundProgress returns current/target of the first goal whose title
// mentions an emergency fund, or 0.
func EmergencyFundProgress(goals []Goal) float64 {
	for _, g := range goals {
		if strings.Contains(strings.ToLower(g.Title), "emergency fund") {
			if g.TargetAmount > 0 {
				return g.CurrentAmount / g.TargetAmount
			}
			return 0
		}
	}
	return 0
}

// ToolCaller invokes provider tools; *fimcp.Client satisfies it.
type ToolCaller interface {
	CallTool(ctx context.Context, name, phone string, args map[string]any) (any, error)
}

// Service reads and writes goals for a phone number.
type Service struct {
	tools ToolCaller
}

func NewService(tools ToolCaller) *Service {
	return &Service{tools: tools}
}

// List returns the user's goals.
func (s *Service) List(ctx context.Context, phone string) ([]Goal, error) {
	res, err := s.tools.CallTool(ctx, fimcp.ToolGetGoals, phone, nil)
	if err != nil {
		if missing(err) {
			return nil, ErrGoalsNotFound
		}
		return nil, fmt.Errorf("get goals: %w", err)
	}
	if res == nil {
		return nil, ErrGoalsNotFound
	}
	return decodeGoals(res)
}

// Add stores g, assigning an id when it has none, and returns all goals.
func (s *Service) Add(ctx context.Context, phone string, g Goal) ([]Goal, error) {
	if g.GoalID == uuid.Nil {
		g.GoalID = uuid.New()
	}
	goal, err := toMap(g)
	if err != nil {
		return nil, err
	}
	res, err := s.tools.CallTool(ctx, fimcp.ToolAddGoal, phone, map[string]any{"goal": goal})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAddFailed, err)
	}
	if res == nil {
		return nil, ErrAddFailed
	}
	return decodeGoals(res)
}

// Update applies u to goal id and returns the updated goal.
func (s *Service) Update(ctx context.Context, phone string, id uuid.UUID, u Update) (Goal, error) {
	update, err := toMap(u)
	if err != nil {
		return Goal{}, err
	}
	res, err := s.tools.CallTool(ctx, fimcp.ToolUpdateGoal, phone, map[string]any{
		"goal_id":     id.String(),
		"goal_update": update,
	})
	if err != nil {
		if missing(err) {
			return Goal{}, ErrGoalNotFound
		}
		return Goal{}, fmt.Errorf("update goal: %w", err)
	}
	list, err := decodeGoals(res)
	if err != nil {
		return Goal{}, err
	}
	for _, g := range list {
		if g.GoalID == id {
			return g, nil
		}
	}
	return Goal{}, ErrGoalNotFound
}

// Delete removes goal id and returns the remaining goals.
func (s *Service) Delete(ctx context.Context, phone string, id uuid.UUID) ([]Goal, error) {
	res, err := s.tools.CallTool(ctx, fimcp.ToolDeleteGoal, phone, map[string]any{"goal_id": id.String()})
	if err != nil {
		if missing(err) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("delete goal: %w", err)
	}
	if res == nil {
		return nil, ErrGoalNotFound
	}
	return decodeGoals(res)
}

// missing reports errors that mean the goal data or goal does not exist.
func missing(err error) bool {
	if errors.Is(err, fimcp.ErrNotFound) || errors.Is(err, fimcp.ErrNotJSON) || errors.Is(err, fimcp.ErrBadRequest) {
		return true
	}
	var te *fimcp.ToolError
	return errors.As(err, &te) && strings.Contains(strings.ToLower(te.Message), "not found")
}

func decodeGoals(v any) ([]Goal, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	goals := []Goal{}
	if err := json.Unmarshal(b, &goals); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}
	return goals, nil
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
