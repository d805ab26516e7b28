// Package oracle answers free-form questions about the user's finances.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sanidhya49/Invested/agents/toolkit"
	"github.com/Sanidhya49/Invested/fimcp"
	"github.com/Sanidhya49/Invested/llm"
	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/observability"
)

const Name = "oracle"

// Keys is everything Oracle can see.
var Keys = []fimcp.DataKey{
	fimcp.NetWorth,
	fimcp.BankTransactions,
	fimcp.CreditReport,
	fimcp.EPFDetails,
	fimcp.MFTransactions,
	fimcp.StockTransactions,
	fimcp.Goals,
}

const systemPrompt = "You are Oracle, an AI-powered personal finance assistant. " +
	"You have access to the user's complete financial data, including net worth, bank transactions, credit report, EPF, mutual fund transactions, stock transactions, and financial goals. " +
	"Answer the user's question in a friendly, conversational, and helpful way, just like a smart financial friend. " +
	"You can: look into the future, check progress, analyze investments, and help with big decisions. " +
	"If any data is 'unavailable', do your best with what you have. " +
	"Be specific, use numbers and trends from the data, and explain your reasoning. " +
	"IMPORTANT: When analyzing bank transactions, look for recurring payments and subscriptions. " +
	"Common subscription patterns include: monthly/quarterly charges for streaming services (Netflix, Spotify, etc.), " +
	"gym memberships, software subscriptions, and other recurring services. " +
	"If you find subscriptions, list them with amounts and frequencies. " +
	"When analyzing goals, provide insights on progress, timelines, and recommendations. "

// Answer is the reply to one question.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Agent answers questions with the user's data attached.
type Agent struct {
	Loader  *toolkit.Loader
	LLM     llm.Client
	Metrics *observability.Metrics
}

// Ask never fails; a model error becomes an apology that echoes the question.
func (a *Agent) Ask(ctx context.Context, uid, question string) Answer {
	ctx, run := toolkit.StartRun(ctx, a.Metrics, Name, uid)

	bundle := a.Loader.Load(ctx, uid, Keys)
	logger.Debugf("oracle: data for %s from %s", uid, bundle.Source)

	answer, err := a.chat(ctx, question, bundle)
	if err != nil {
		logger.Error("oracle: model call failed", err)
		run.Finish(toolkit.OutcomeLLMError, err)
		return Answer{Question: question, Answer: unavailableAnswer(question)}
	}
	run.Finish(toolkit.OutcomeOK, nil)
	return Answer{Question: question, Answer: answer}
}

func (a *Agent) chat(ctx context.Context, question string, bundle toolkit.Bundle) (string, error) {
	if a.LLM == nil {
		return "", llm.ErrLLMDisabled
	}
	data, err := json.Marshal(bundle.Prompt(Keys, nil))
	if err != nil {
		return "", fmt.Errorf("encode data: %w", err)
	}
	user := "User's question: '" + question + "'\n" + "Data:\n" + string(data)
	return a.LLM.Chat(ctx, systemPrompt, user)
}

func unavailableAnswer(question string) string {
	return "I'm sorry, but I'm currently unable to process your request due to a technical issue. " +
		"Please try again later. Your question was: " + question
}
