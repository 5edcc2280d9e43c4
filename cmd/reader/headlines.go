package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"articlewave/internal/config"
	"articlewave/internal/controller"
	"articlewave/internal/fetcher"
	"articlewave/internal/logger"
	"articlewave/internal/models"
	"articlewave/internal/worker"

	"github.com/spf13/cobra"
)

var (
	flagCountry   string
	flagJSON      bool
	flagCountries []string
)

var headlinesCmd = &cobra.Command{
	Use:   "headlines",
	Short: "Fetch and print the headlines of one country",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return headlines(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List supported countries",
	Run: func(cmd *cobra.Command, args []string) {
		printCountries(cmd.OutOrStdout(), models.CountryCodes())
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy headlines from the configured source into Postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return importArticles(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func init() {
	headlinesCmd.Flags().StringVar(&flagCountry, "country", "", "country code (defaults to default_country)")
	headlinesCmd.Flags().BoolVar(&flagJSON, "json", false, "print articles as JSON")
	importCmd.Flags().StringSliceVar(&flagCountries, "country", nil, "country codes to import (defaults to all configured)")
}

// headlines проводит один цикл контроллера без кеша миниатюр и печатает результат.
func headlines(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	country := strings.ToLower(flagCountry)
	if country == "" {
		country = cfg.DefaultCountry
	}
	if !cfg.Supports(country) {
		return fmt.Errorf("unsupported country: %s", country)
	}

	source, release, err := buildSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	articles, err := fetchHeadlines(ctx, source, country, cfg.Timeout()+time.Second)
	if err != nil {
		return err
	}
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(articles)
	}
	printArticles(out, country, articles)
	return nil
}

// fetchHeadlines выбирает страну и ждёт ответа не дольше wait. Отмена ctx закрывает
// контроллер, а с ним и запрос к источнику.
func fetchHeadlines(ctx context.Context, source fetcher.ArticleSource, country string, wait time.Duration) ([]models.Article, error) {
	ctrl := controller.New(source, nil)
	defer closeController(ctrl)
	stop := context.AfterFunc(ctx, func() { closeController(ctrl) })
	defer stop()

	ctrl.SelectCountry(country)
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := ctrl.Wait(waitCtx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state := ctrl.State()
	if state.Kind == models.StateError {
		return nil, state.Err
	}
	return state.Articles, nil
}

func closeController(ctrl *controller.Controller) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ctrl.Close(ctx); err != nil {
		logger.Log.Errorf("Failed to close controller: %v", err)
	}
}

func importArticles(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Source == config.SourcePostgres {
		return fmt.Errorf("import needs a remote source, got %s", cfg.Source)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("import requires database_url")
	}

	source, release, err := buildSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	database, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	countries := flagCountries
	if len(countries) == 0 {
		countries = cfg.Countries
	}
	imp := worker.NewImporter(source, database)
	total, err := imp.ImportAll(ctx, countries)
	fmt.Fprintf(out, "imported %d articles\n", total)
	return err
}

func printArticles(out io.Writer, country string, articles []models.Article) {
	if c, ok := models.LookupCountry(country); ok {
		fmt.Fprintf(out, "%s %s\n\n", c.Emoji, c.Name)
	}
	if len(articles) == 0 {
		fmt.Fprintln(out, "no articles")
		return
	}
	for i, a := range articles {
		fmt.Fprintf(out, "%2d. %s\n", i+1, a.Title)
		if a.SourceName != nil {
			fmt.Fprintf(out, "    %s · %s\n", *a.SourceName, a.PublishedAt)
		}
		fmt.Fprintf(out, "    %s\n", a.SourceURL)
	}
}

func printCountries(out io.Writer, codes []string) {
	for _, code := range codes {
		if c, ok := models.LookupCountry(code); ok {
			fmt.Fprintf(out, "%s  %s  %s\n", c.Code, c.Emoji, c.Name)
		}
	}
}
