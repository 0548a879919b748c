package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/buyermatch/internal/export"
	"github.com/sells-group/buyermatch/internal/model"
)

var rankFlags struct {
	subjectFile string
	xlsxPath    string
	limit       int

	bedrooms   int
	bathrooms  float64
	squareFeet int
	yearBuilt  int
	price      float64
	lat        float64
	lon        float64
	zip        string
	city       string
	county     string
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank buyers for a subject property",
	Long:  "Loads the active roster, applies each buyer's hard acquisition filters, scores the survivors, and prints them in descending likelihood order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := buildSubject(cmd)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ranked, err := env.Engine.RankBuyers(cmd.Context(), subject)
		if err != nil {
			return err
		}
		if len(ranked) == 0 {
			fmt.Println("No matching buyers found.")
			return nil
		}

		limit := len(ranked)
		if rankFlags.limit > 0 && rankFlags.limit < limit {
			limit = rankFlags.limit
		}
		for i := 0; i < limit; i++ {
			fmt.Println(export.SummaryLine(i+1, ranked[i]))
		}

		if rankFlags.xlsxPath != "" {
			if err := export.WriteXLSX(rankFlags.xlsxPath, ranked); err != nil {
				return err
			}
			zap.L().Info("wrote workbook",
				zap.String("path", rankFlags.xlsxPath),
				zap.Int("buyers", len(ranked)),
			)
		}

		return nil
	},
}

// buildSubject assembles the subject property from either a JSON file or
// individual flags. Only flags the caller actually set become known values;
// everything else stays unknown so scoring degrades instead of treating
// zero as a real attribute.
func buildSubject(cmd *cobra.Command) (model.SubjectProperty, error) {
	if rankFlags.subjectFile != "" {
		raw, err := os.ReadFile(rankFlags.subjectFile)
		if err != nil {
			return model.SubjectProperty{}, eris.Wrapf(err, "read subject file %s", rankFlags.subjectFile)
		}
		var subject model.SubjectProperty
		if err := json.Unmarshal(raw, &subject); err != nil {
			return model.SubjectProperty{}, eris.Wrapf(err, "parse subject file %s", rankFlags.subjectFile)
		}
		return subject, nil
	}

	flags := cmd.Flags()
	subject := model.SubjectProperty{
		ZipCode: rankFlags.zip,
		City:    rankFlags.city,
		County:  rankFlags.county,
	}
	if flags.Changed("bedrooms") {
		subject.Bedrooms = &rankFlags.bedrooms
	}
	if flags.Changed("bathrooms") {
		subject.Bathrooms = &rankFlags.bathrooms
	}
	if flags.Changed("sqft") {
		subject.SquareFeet = &rankFlags.squareFeet
	}
	if flags.Changed("year") {
		subject.YearBuilt = &rankFlags.yearBuilt
	}
	if flags.Changed("price") {
		subject.EstimatedPrice = &rankFlags.price
	}
	if flags.Changed("lat") != flags.Changed("lon") {
		return model.SubjectProperty{}, eris.New("--lat and --lon must be set together")
	}
	if flags.Changed("lat") {
		subject.Latitude = &rankFlags.lat
		subject.Longitude = &rankFlags.lon
	}
	return subject, nil
}

func init() {
	f := rankCmd.Flags()
	f.StringVar(&rankFlags.subjectFile, "json", "", "read the subject property from a JSON file instead of flags")
	f.StringVar(&rankFlags.xlsxPath, "xlsx", "", "also write the full ranking to an xlsx workbook")
	f.IntVar(&rankFlags.limit, "limit", 0, "print at most N buyers (0 = all)")

	f.IntVar(&rankFlags.bedrooms, "bedrooms", 0, "subject bedroom count")
	f.Float64Var(&rankFlags.bathrooms, "bathrooms", 0, "subject bathroom count")
	f.IntVar(&rankFlags.squareFeet, "sqft", 0, "subject square footage")
	f.IntVar(&rankFlags.yearBuilt, "year", 0, "subject year built")
	f.Float64Var(&rankFlags.price, "price", 0, "subject estimated price")
	f.Float64Var(&rankFlags.lat, "lat", 0, "subject latitude")
	f.Float64Var(&rankFlags.lon, "lon", 0, "subject longitude")
	f.StringVar(&rankFlags.zip, "zip", "", "subject zip code")
	f.StringVar(&rankFlags.city, "city", "", "subject city")
	f.StringVar(&rankFlags.county, "county", "", "subject county")

	rootCmd.AddCommand(rankCmd)
}
