package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"marketinsights/internal/app"
	"marketinsights/internal/handler"
	"marketinsights/internal/model"
)

const helpText = `
📋 Available Commands:
  help         - Show this help message
  examples     - Show example queries
  status       - Show API usage and rate limits
  models       - List the models answers are requested from
  cache        - Show cache statistics
  cache clear  - Drop cached answers
  clear        - Clear the screen
  exit/quit    - Exit the application

🏠 Analysis Types:
  Market Yield        - Rental yield for a location and property type
  Market Trends       - Price and rent movement over time
  Location Comparison - Two markets side by side
  Investment Finder   - Listings above a yield threshold
  Market Summary      - Overview of a single market
`

const examplesText = `
📋 Example Queries:

🏠 Market Yield
  "What's the rental yield for 2-bedroom apartments in Seattle?"
  "Calculate yield for houses in Austin"

📈 Market Trends
  "What are the price trends for Seattle over the last year?"
  "How has the Portland market changed in the past 6 months?"

🔍 Location Comparison
  "Compare Seattle vs Portland for rental investment"
  "Which is better for yield: Denver or Austin?"

💰 Investment Opportunities
  "Find investment opportunities above 6% yield under $500k"

📋 Market Summary
  "Give me a market overview of Miami"
`

type answerer interface {
	RouteQuery(ctx context.Context, raw string) model.ModelResponse
	CacheStats() model.CacheStats
	ClearCache()
}

// chatSession is the interactive read-answer loop
type chatSession struct {
	router   answerer
	usage    handler.UsageReporter // nil without a provider
	models   []string
	database func(ctx context.Context) string
	in       io.Reader
	out      io.Writer
	now      func() time.Time

	started time.Time
	queries int
}

func newChatSession(a *app.App, in io.Reader, out io.Writer) *chatSession {
	models := a.Config.OpenRouter.Models()
	if a.Provider != nil {
		models = a.Provider.Models()
	}
	return &chatSession{
		router: a.Router,
		usage:  a.Usage(),
		models: models,
		database: func(ctx context.Context) string {
			if a.DB == nil {
				return "No (synthetic data)"
			}
			if err := a.Ping(ctx); err != nil {
				return "No (" + err.Error() + ")"
			}
			return "Yes"
		},
		in:  in,
		out: out,
		now: time.Now,
	}
}

func (s *chatSession) run(ctx context.Context) error {
	s.started = s.now()
	fmt.Fprintln(s.out, "🏠 Welcome to Real Estate Market Insights!")
	fmt.Fprintln(s.out, "💬 Type 'help' for commands, 'examples' for sample queries, or 'exit' to quit.")

	scanner := bufio.NewScanner(s.in)
	for {
		fmt.Fprint(s.out, "\n🤖 insights > ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		if quit := s.handle(ctx, strings.TrimSpace(scanner.Text())); quit {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handle runs one line of input and reports whether the session should end
func (s *chatSession) handle(ctx context.Context, line string) bool {
	switch strings.ToLower(line) {
	case "":
	case "exit", "quit", "bye":
		fmt.Fprintln(s.out, "👋 Goodbye!")
		return true
	case "help":
		fmt.Fprint(s.out, helpText)
	case "examples":
		fmt.Fprint(s.out, examplesText)
	case "status":
		s.printStatus(ctx)
	case "models":
		s.printModels()
	case "cache":
		s.printCache()
	case "cache clear":
		s.router.ClearCache()
		fmt.Fprintln(s.out, "🧹 Cache cleared")
	case "clear":
		fmt.Fprint(s.out, "\033[H\033[2J")
	default:
		s.queries++
		fmt.Fprintln(s.out, "🔍 Analyzing your request...")
		printResponse(s.out, s.router.RouteQuery(ctx, line))
	}
	return false
}

func (s *chatSession) printStatus(ctx context.Context) {
	rows := [][2]string{
		{"Session Duration", fmt.Sprintf("%.1f minutes", s.now().Sub(s.started).Minutes())},
		{"Queries in Session", fmt.Sprint(s.queries)},
	}
	if s.usage != nil {
		status := s.usage.RateLimitStatus()
		rows = append(rows,
			[2]string{"Daily API Limit", fmt.Sprint(status.DailyLimit)},
			[2]string{"API Calls Used Today", fmt.Sprint(status.RequestsUsed)},
			[2]string{"Remaining API Calls", fmt.Sprint(status.Remaining)},
			[2]string{"Usage Percentage", fmt.Sprintf("%.1f%%", status.UsagePercent)},
		)
	} else {
		rows = append(rows, [2]string{"Generation", "Not configured (set OPENROUTER_API_KEY)"})
	}
	if len(s.models) > 0 {
		rows = append(rows, [2]string{"Current Model", s.models[0]})
	}
	rows = append(rows, [2]string{"Database Connected", s.database(ctx)})

	fmt.Fprintln(s.out, "Session Status")
	fmt.Fprintln(s.out, strings.Repeat("-", 60))
	for _, r := range rows {
		fmt.Fprintf(s.out, "%-30s %s\n", r[0], r[1])
	}
}

func (s *chatSession) printModels() {
	fmt.Fprintln(s.out, "Models (in fallback order)")
	fmt.Fprintln(s.out, strings.Repeat("-", 60))
	for _, m := range s.models {
		kind := "Paid"
		if strings.Contains(m, ":free") {
			kind = "Free"
		}
		fmt.Fprintf(s.out, "%-50s %s\n", m, kind)
	}
}

func (s *chatSession) printCache() {
	stats := s.router.CacheStats()
	fmt.Fprintf(s.out, "Hits: %d  Misses: %d  Hit rate: %.1f%%\n", stats.Hits, stats.Misses, stats.HitRate*100)
	fmt.Fprintf(s.out, "Cached answers: %d  Cached parses: %d\n", stats.ResponseEntries, stats.ParsedEntries)
}

func printResponse(w io.Writer, resp model.ModelResponse) {
	fmt.Fprintf(w, "\n💬 %s\n", resp.Content)
	fmt.Fprintf(w, "⏱ Response time: %.2fs\n", resp.ResponseTimeSeconds)
	fmt.Fprintf(w, "🤖 Model used: %s\n", resp.ModelUsed)
	fmt.Fprintf(w, "🔧 Engine: %s\n", resp.EngineUsed)
}
