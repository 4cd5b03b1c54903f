package server

import (
	"fmt"
	"net/url"

	"github.com/go-viper/mapstructure/v2"
)

// CustomerForm is the web form submission. Every field arrives as text;
// numeric coercion happens in the predictor.
type CustomerForm struct {
	Gender           string `mapstructure:"gender,omitempty"`
	SeniorCitizen    string `mapstructure:"SeniorCitizen,omitempty"`
	Partner          string `mapstructure:"Partner,omitempty"`
	Dependents       string `mapstructure:"Dependents,omitempty"`
	Tenure           string `mapstructure:"tenure,omitempty"`
	PhoneService     string `mapstructure:"PhoneService,omitempty"`
	MultipleLines    string `mapstructure:"MultipleLines,omitempty"`
	InternetService  string `mapstructure:"InternetService,omitempty"`
	OnlineSecurity   string `mapstructure:"OnlineSecurity,omitempty"`
	OnlineBackup     string `mapstructure:"OnlineBackup,omitempty"`
	DeviceProtection string `mapstructure:"DeviceProtection,omitempty"`
	TechSupport      string `mapstructure:"TechSupport,omitempty"`
	StreamingTV      string `mapstructure:"StreamingTV,omitempty"`
	StreamingMovies  string `mapstructure:"StreamingMovies,omitempty"`
	Contract         string `mapstructure:"Contract,omitempty"`
	PaperlessBilling string `mapstructure:"PaperlessBilling,omitempty"`
	PaymentMethod    string `mapstructure:"PaymentMethod,omitempty"`
	MonthlyCharges   string `mapstructure:"MonthlyCharges,omitempty"`
	TotalCharges     string `mapstructure:"TotalCharges,omitempty"`
}

// FormField describes one input of the web form.
type FormField struct {
	Name    string
	Label   string
	Options []string // nil for numeric inputs
}

var (
	yesNo          = []string{"No", "Yes"}
	internetAddOn  = []string{"No", "Yes", "No internet service"}
	customerFields = []FormField{
		{Name: "gender", Label: "Gender", Options: []string{"Female", "Male"}},
		{Name: "SeniorCitizen", Label: "Senior citizen", Options: []string{"0", "1"}},
		{Name: "Partner", Label: "Partner", Options: yesNo},
		{Name: "Dependents", Label: "Dependents", Options: yesNo},
		{Name: "tenure", Label: "Tenure (months)"},
		{Name: "PhoneService", Label: "Phone service", Options: yesNo},
		{Name: "MultipleLines", Label: "Multiple lines", Options: []string{"No", "Yes", "No phone service"}},
		{Name: "InternetService", Label: "Internet service", Options: []string{"DSL", "Fiber optic", "No"}},
		{Name: "OnlineSecurity", Label: "Online security", Options: internetAddOn},
		{Name: "OnlineBackup", Label: "Online backup", Options: internetAddOn},
		{Name: "DeviceProtection", Label: "Device protection", Options: internetAddOn},
		{Name: "TechSupport", Label: "Tech support", Options: internetAddOn},
		{Name: "StreamingTV", Label: "Streaming TV", Options: internetAddOn},
		{Name: "StreamingMovies", Label: "Streaming movies", Options: internetAddOn},
		{Name: "Contract", Label: "Contract", Options: []string{"Month-to-month", "One year", "Two year"}},
		{Name: "PaperlessBilling", Label: "Paperless billing", Options: yesNo},
		{Name: "PaymentMethod", Label: "Payment method", Options: []string{
			"Electronic check", "Mailed check", "Bank transfer (automatic)", "Credit card (automatic)",
		}},
		{Name: "MonthlyCharges", Label: "Monthly charges"},
		{Name: "TotalCharges", Label: "Total charges"},
	}
)

// CustomerFields returns the inputs rendered by the web form.
func CustomerFields() []FormField {
	out := make([]FormField, len(customerFields))
	copy(out, customerFields)
	return out
}

// DecodeForm reads a submitted form. Unknown keys are ignored.
func DecodeForm(values url.Values) (CustomerForm, error) {
	raw := make(map[string]any, len(values))
	for k := range values {
		raw[k] = values.Get(k)
	}
	var form CustomerForm
	if err := mapstructure.Decode(raw, &form); err != nil {
		return CustomerForm{}, fmt.Errorf("failed to decode form: %w", err)
	}
	return form, nil
}

// Fields returns the non-empty form values keyed by field name.
func (f CustomerForm) Fields() (map[string]any, error) {
	out := map[string]any{}
	if err := mapstructure.Decode(f, &out); err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}
	return out, nil
}

// formValues renders a request map as input values.
func formValues(fields map[string]any) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = fmt.Sprint(v)
	}
	return out
}
