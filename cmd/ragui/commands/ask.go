// ABOUTME: CLI command to ask for recommendations, once or in an interactive session
// ABOUTME: The REPL keeps one conversation so follow-up questions are rewritten with context
package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/BASF-LSU-Collaborations/ragui/internal/app"
	"github.com/BASF-LSU-Collaborations/ragui/internal/core"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/session"
	"github.com/spf13/cobra"
)

var (
	askFilters filterFlags
	askPurpose string
)

// NewAskCmd creates the ask command
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Ask for movie recommendations",
		Long: `Ask for movie recommendations.

With a query, answers once and exits. Without one, starts an
interactive session: each line is a question, follow-ups are
understood in the context of earlier ones, and "exit" or an
empty line at EOF ends the session.

Examples:
  ragui ask "feel-good comedies"
  ragui ask --type Movie --year-min 1990 --year-max 1999 "crime dramas"
  ragui ask --purpose search "movies about space"
  ragui ask`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAsk,
	}

	askFilters.register(cmd)
	cmd.Flags().StringVar(&askPurpose, "purpose", string(core.PurposeRecommendation), "Explanation style: recommendation or search")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	filter, err := askFilters.filter()
	if err != nil {
		return err
	}
	purpose, err := core.ParsePurpose(askPurpose)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	sess := a.Sessions.Create()
	req := core.Request{Filter: filter, TopK: askFilters.topK, Purpose: purpose}

	if len(args) == 1 {
		req.Query = args[0]
		return askOnce(cmd.Context(), cmd.OutOrStdout(), sess, req, wantJSON(cmd))
	}
	return repl(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), sess, req, wantJSON(cmd))
}

func askOnce(ctx context.Context, w io.Writer, sess *session.Session, req core.Request, asJSON bool) error {
	ans, err := sess.Ask(ctx, req)
	if err != nil {
		return err
	}
	printAnswer(w, ans, asJSON)
	return nil
}

// repl reads one question per line until EOF or "exit". A failed question is
// reported and the session continues.
func repl(ctx context.Context, in io.Reader, w io.Writer, sess *session.Session, base core.Request, asJSON bool) error {
	scanner := bufio.NewScanner(in)
	if !quiet {
		fmt.Fprintln(w, "Ask about movies and shows. Type \"exit\" to quit.")
	}
	for {
		if !quiet {
			fmt.Fprint(w, "> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		req := base
		req.Query = line
		ans, err := sess.Ask(ctx, req)
		if err != nil {
			fmt.Fprintf(w, "Error (%s): %v\n", models.Kind(err), err)
			continue
		}
		printAnswer(w, ans, asJSON)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return scanner.Err()
}

func printAnswer(w io.Writer, ans models.Answer, asJSON bool) {
	if asJSON {
		_ = printJSON(w, ans)
		return
	}
	if !quiet && ans.RewrittenQuery != "" {
		fmt.Fprintf(w, "Searching for: %s\n\n", ans.RewrittenQuery)
	}
	if !ans.Results.Empty() {
		printResults(w, ans.Results)
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, ans.Explanation)
	fmt.Fprintln(w)
}
