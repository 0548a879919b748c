// Package export writes ranking results to spreadsheet files for the sales
// team.
package export

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/buyermatch/internal/model"
)

var header = []string{
	"Rank",
	"Company",
	"Total Score",
	"Likelihood",
	"Category",
	"Geography",
	"Recency",
	"Price",
	"Characteristics",
	"Activity",
	"Recent Purchases",
	"Contact Email",
	"Contact Phone",
	"Counties",
}

// WriteXLSX writes the ranked buyers to an xlsx workbook at path, one row
// per buyer in ranking order with the component sub-scores broken out.
func WriteXLSX(path string, ranked []model.RankedBuyer) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Ranked Buyers")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	headerRow := sheet.AddRow()
	for _, h := range header {
		headerRow.AddCell().SetString(h)
	}

	for i, rb := range ranked {
		row := sheet.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(rb.Buyer.CompanyName)
		row.AddCell().SetInt(rb.TotalScore)
		row.AddCell().SetString(string(rb.Likelihood))
		row.AddCell().SetString(string(rb.Category))
		row.AddCell().SetInt(rb.Components.Geography)
		row.AddCell().SetInt(rb.Components.Recency)
		row.AddCell().SetInt(rb.Components.Price)
		row.AddCell().SetInt(rb.Components.Characteristics)
		row.AddCell().SetInt(rb.Components.Activity)
		row.AddCell().SetInt(rb.Buyer.RecentPurchaseCount)
		row.AddCell().SetString(rb.Buyer.Profile.ContactEmail)
		row.AddCell().SetString(rb.Buyer.Profile.ContactPhone)
		row.AddCell().SetString(strings.Join(rb.Buyer.Profile.Counties, "; "))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save workbook %s", path)
	}
	return nil
}

// SummaryLine renders one ranked buyer as a compact single line for
// terminal output.
func SummaryLine(rank int, rb model.RankedBuyer) string {
	return fmt.Sprintf("%3d. %-40s %3d  %-12s %s",
		rank, rb.Buyer.CompanyName, rb.TotalScore, rb.Likelihood, rb.Category)
}
