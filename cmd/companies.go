package cmd

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/es-reviewer/internal/companies"
	"github.com/spigell/es-reviewer/internal/logger"
	"github.com/spigell/es-reviewer/internal/scorecard"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List the company addons and check their weights",
	Run: func(cmd *cobra.Command, _ []string) {
		listCompanies(cmd)
	},
}

func init() {
	rootCmd.AddCommand(companiesCmd)
}

func listCompanies(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	catalog, err := companies.LoadFile(config.Review.CompaniesFile)
	if err != nil {
		logger.Fatal("loading company catalog", zap.Error(err))
	}

	w := cmd.OutOrStdout()
	for _, p := range catalog.Profiles() {
		fmt.Fprintf(w, "%-16s %s\n", p.ID, p.Label)
		fmt.Fprintf(w, "  aliases: %s\n", strings.Join(p.Aliases, ", "))
		fmt.Fprintf(w, "  weights: %s (sum %d)\n", formatWeights(p), p.TotalWeight())
		fmt.Fprintf(w, "  fit: max %d, bonus max %d\n", p.FitMax, p.BonusMax)
	}

	drift := catalog.Drift(companies.DriftTolerance)
	if len(drift) == 0 {
		logger.Info("company weights are consistent", zap.Int("count", len(catalog.Profiles())))
		return
	}
	for _, d := range drift {
		logger.Warn("company weights drift", zap.String("company", d.String()))
	}
}

func formatWeights(p *companies.Profile) string {
	dims := make([]int, 0, len(p.Weights))
	for d := range p.Weights {
		dims = append(dims, int(d))
	}
	sort.Ints(dims)

	parts := make([]string, 0, len(dims))
	for _, d := range dims {
		parts = append(parts, fmt.Sprintf("%d:%d", d, p.Weights[scorecard.Dimension(d)]))
	}
	return strings.Join(parts, " ")
}
