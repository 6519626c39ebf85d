package service

import (
	"encoding/json"
	"fmt"

	"marketinsights/internal/model"
)

const (
	roleSystem = "system"
	roleUser   = "user"

	analystPrompt = "You are a real estate market analyst. Provide concise, data-driven insights in 2-4 sentences."
	advisorPrompt = "You are a real estate investment advisor. Highlight the best opportunities based on yield and value in 2-4 sentences."
	generalPrompt = "You are a knowledgeable real estate market analyst. Answer questions about markets, investment strategy and property analysis in 2-4 sentences."
	errorApology  = "I apologize, but I encountered an error while processing your query. Please try again or rephrase your question."
)

// conversation is one system instruction followed by one user turn
func conversation(system, user string) []model.Message {
	return []model.Message{
		{Role: roleSystem, Content: system},
		{Role: roleUser, Content: user},
	}
}

// groundingJSON renders fetched data for embedding in a prompt
func groundingJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode grounding data: %w", err)
	}
	return string(b), nil
}

func yieldPrompt(location, propertyType string, data *model.YieldData) ([]model.Message, error) {
	body, err := groundingJSON(data)
	if err != nil {
		return nil, err
	}
	return conversation(analystPrompt, fmt.Sprintf(
		"Based on this market data:\n%s\n\nGive a brief analysis of the rental yield for %ss in %s.",
		body, propertyType, location,
	)), nil
}

func trendsPrompt(summary model.TrendSummary) ([]model.Message, error) {
	body, err := groundingJSON(summary)
	if err != nil {
		return nil, err
	}
	return conversation(analystPrompt, fmt.Sprintf(
		"Analyze these market trends for %s over the past %d months:\n%s",
		summary.Location, summary.PeriodMonths, body,
	)), nil
}

func comparisonPrompt(propertyType string, data []model.YieldData) ([]model.Message, error) {
	body, err := groundingJSON(data)
	if err != nil {
		return nil, err
	}
	return conversation(analystPrompt, fmt.Sprintf(
		"Compare the real estate markets for %ss across these locations:\n%s",
		propertyType, body,
	)), nil
}

func opportunitiesPrompt(opps []model.Opportunity) ([]model.Message, error) {
	body, err := groundingJSON(opps)
	if err != nil {
		return nil, err
	}
	return conversation(advisorPrompt, fmt.Sprintf(
		"Analyze these investment opportunities and recommend the best options:\n%s",
		body,
	)), nil
}

func summaryPrompt(summary *model.MarketSummary) ([]model.Message, error) {
	body, err := groundingJSON(summary)
	if err != nil {
		return nil, err
	}
	return conversation(analystPrompt, fmt.Sprintf(
		"Provide a market summary for %s based on this data:\n%s",
		summary.Location, body,
	)), nil
}

func generalConversation(raw string) []model.Message {
	return conversation(generalPrompt, raw)
}
