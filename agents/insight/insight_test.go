package insight

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sanidhya49/Invested/fimcp"
)

type fixedSession string

func (s fixedSession) ID() string { return string(s) }

type fakeStreamer struct {
	session, tool, phone string
	err                  error
}

func (f *fakeStreamer) Stream(_ context.Context, sessionID, tool, phone string) (map[string]any, error) {
	f.session, f.tool, f.phone = sessionID, tool, phone
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"netWorthResponse": map[string]any{"totalNetWorthValue": map[string]any{"units": "868720"}}}, nil
}

type jsonLLM struct {
	prompt   string
	jsonMode bool
	reply    string
}

func (j *jsonLLM) Chat(_ context.Context, _, user string) (string, error) {
	j.prompt = user
	return j.reply, nil
}

func (j *jsonLLM) ChatJSON(_ context.Context, _, user string) (string, error) {
	j.prompt, j.jsonMode = user, true
	return j.reply, nil
}

func TestProcessNetWorth(t *testing.T) {
	p := &fakeStreamer{}
	m := &jsonLLM{reply: "```json\n{\"summary\":\"You are worth 8.7L\",\"details\":{\"total_net_worth\":868720}}\n```"}
	s := &Service{Provider: p, Session: fixedSession("backend_session_ab"), LLM: m}

	got, err := s.Process(context.Background(), "fetch_net_worth")
	require.NoError(t, err)

	assert.Equal(t, "Here's your net worth summary:", got.Message)
	assert.Equal(t, "You are worth 8.7L", got.Data["summary"])
	assert.Equal(t, "backend_session_ab", p.session)
	assert.Equal(t, "fetch_net_worth", p.tool)
	assert.Empty(t, p.phone)
	assert.True(t, m.jsonMode)
	assert.Contains(t, m.prompt, "Net Worth Data:\n{\n  \"netWorthResponse\": {")
	assert.NotContains(t, m.prompt, "{mcp_data}")
}

func TestProcessErrors(t *testing.T) {
	s := &Service{Provider: &fakeStreamer{}, Session: fixedSession(""), LLM: &jsonLLM{}}

	_, err := s.Process(context.Background(), "buy_crypto")
	require.ErrorIs(t, err, ErrUnsupportedIntent)
	assert.Equal(t, "Intent 'buy_crypto' not supported.", err.Error())

	_, err = s.Process(context.Background(), "analyze_spending")
	require.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, "MCP session not established during startup.", err.Error())

	s.Session = fixedSession("sess")
	s.Provider = &fakeStreamer{err: &fimcp.StatusError{Code: 500, Body: "Could not read tool data"}}
	_, err = s.Process(context.Background(), "fetch_credit_report")
	var se *fimcp.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 500, se.Code)

	s.Provider = &fakeStreamer{}
	s.LLM = &jsonLLM{reply: "no json here"}
	_, err = s.Process(context.Background(), "fetch_net_worth")
	assert.Error(t, err)
}
