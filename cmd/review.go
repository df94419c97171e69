package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/es-reviewer/internal/companies"
	"github.com/spigell/es-reviewer/internal/evaluator"
	"github.com/spigell/es-reviewer/internal/ledger"
	"github.com/spigell/es-reviewer/internal/logger"
	"github.com/spigell/es-reviewer/internal/paginate"
)

const (
	// PromptNoCompany evaluates without a company addon.
	PromptNoCompany = "なし（企業アドオンなし）"
	cliUser         = "cli"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review one entry sheet from a file or stdin",
	Run: func(cmd *cobra.Command, _ []string) {
		review(cmd)
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().StringP("file", "f", "-", "essay file, - reads stdin")
	reviewCmd.Flags().StringP("company", "c", "", "company name or alias for the addon")
	reviewCmd.Flags().BoolP("interactive", "i", false, "pick the company from the catalog")
	reviewCmd.Flags().String("xlsx", "", "record the review in this ledger file")

	viper.BindPFlag("ledger.path", reviewCmd.Flags().Lookup("xlsx"))
}

func review(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	essay, err := readEssay(cmd.Flag("file").Value.String(), cmd.InOrStdin())
	if err != nil {
		logger.Fatal("reading essay", zap.Error(err))
	}

	catalog, err := loadCatalog(config, logger)
	if err != nil {
		logger.Fatal("loading company catalog", zap.Error(err))
	}

	company := strings.TrimSpace(cmd.Flag("company").Value.String())
	if company == "" && cmd.Flag("interactive").Value.String() == "true" {
		company, err = pickCompany(catalog)
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	reviewer, err := newEvaluator(ctx, config, catalog, logger)
	if err != nil {
		logger.Fatal("building evaluator", zap.Error(err))
	}

	out := reviewer.Evaluate(ctx, evaluator.Input{Essay: essay, Company: company, User: cliUser})

	if err := recordReview(config.Ledger.Path, out, logger); err != nil {
		logger.Error("recording review", zap.Error(err))
	}

	if !out.OK() {
		logger.Fatal("review failed",
			zap.String("state", string(out.Result.State)),
			zap.String("error", out.Result.Error),
			zap.String("reason", out.Result.Reason),
		)
	}

	// A terminal has no reply limit, so every page is printed.
	w := cmd.OutOrStdout()
	first := true
	for rest := out.Text; rest != ""; {
		page := paginate.Split(rest, config.Review.ChunkLength, config.Review.MaxChunks)
		for _, chunk := range page.Chunks {
			if !first {
				fmt.Fprintln(w, "\n----")
			}
			first = false
			fmt.Fprintln(w, paginate.StripNotice(chunk))
		}
		rest = page.Rest
	}
}

func readEssay(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}

	essay := paginate.Normalize(string(data))
	if essay == "" {
		return "", errors.New("essay is empty")
	}
	return essay, nil
}

func pickCompany(catalog *companies.Catalog) (string, error) {
	items := []string{PromptNoCompany}
	for _, p := range catalog.Profiles() {
		items = append(items, p.Label)
	}

	companyPrompt := promptui.Select{
		Label: "Choose a company addon",
		Items: items,
		Size:  len(items),
	}

	_, selected, err := companyPrompt.Run()
	if err != nil {
		return "", err
	}
	if selected == PromptNoCompany {
		return "", nil
	}
	return selected, nil
}

func recordReview(path string, out *evaluator.Outcome, logger *zap.Logger) error {
	l, err := newLedger(path)
	if err != nil || l == nil {
		return err
	}

	if err := l.Upsert(ledger.FromOutcome(out, cliUser, time.Now())); err != nil {
		return err
	}

	logger.Info("review recorded", zap.String("path", l.Path()), zap.String("id", out.ID))
	return nil
}
