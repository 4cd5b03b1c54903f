package testutil

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// TelcoHeader is the column layout of the raw customer dataset.
var TelcoHeader = []string{
	"customerID", "gender", "SeniorCitizen", "Partner", "Dependents", "tenure",
	"PhoneService", "MultipleLines", "InternetService", "OnlineSecurity", "OnlineBackup",
	"DeviceProtection", "TechSupport", "StreamingTV", "StreamingMovies", "Contract",
	"PaperlessBilling", "PaymentMethod", "MonthlyCharges", "TotalCharges", "Churn",
}

// TelcoRow builds raw row i of the synthetic dataset. Customers on a
// month-to-month contract with tenure below 24 months churn; nobody else
// does. Zero-tenure rows carry a blank TotalCharges like the real export.
func TelcoRow(i int) []string {
	yesNo := func(b bool) string {
		if b {
			return "Yes"
		}
		return "No"
	}
	pick := func(vals ...string) string { return vals[i%len(vals)] }

	contract := []string{"Month-to-month", "One year", "Two year"}[i%3]
	tenure := (i * 7) % 72
	monthly := 20 + float64((i*13)%100) + 0.5
	total := " "
	if tenure > 0 {
		total = strconv.FormatFloat(float64(tenure)*monthly, 'f', 2, 64)
	}
	senior := "0"
	if i%6 == 0 {
		senior = "1"
	}
	internet := pick("DSL", "Fiber optic", "No", "Fiber optic")
	addon := func(shift int) string {
		if internet == "No" {
			return "No internet service"
		}
		return yesNo((i+shift)%2 == 0)
	}
	phone := i%5 != 0
	lines := "No phone service"
	if phone {
		lines = yesNo(i%2 == 1)
	}

	return []string{
		fmt.Sprintf("%04d-SYNTH", i),
		pick("Female", "Male"),
		senior,
		yesNo(i%3 == 1),
		yesNo(i%4 == 0),
		strconv.Itoa(tenure),
		yesNo(phone),
		lines,
		internet,
		addon(0), addon(1), addon(2), addon(3), addon(4), addon(5),
		contract,
		yesNo(i%2 == 0),
		pick("Electronic check", "Mailed check", "Bank transfer (automatic)", "Credit card (automatic)"),
		strconv.FormatFloat(monthly, 'f', 2, 64),
		total,
		yesNo(contract == "Month-to-month" && tenure < 24),
	}
}

// WriteTelcoCSV writes n synthetic raw customer rows to path.
func WriteTelcoCSV(tb testing.TB, path string, n int) {
	tb.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("failed to create data dir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(TelcoHeader); err != nil {
		tb.Fatalf("failed to write header: %v", err)
	}
	for i := range n {
		if err := w.Write(TelcoRow(i)); err != nil {
			tb.Fatalf("failed to write row %d: %v", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tb.Fatalf("failed to flush csv: %v", err)
	}
}
