package serving

// Example is a named sample request.
type Example struct {
	Name   string
	Fields map[string]any
}

// Examples are the sample customers offered by the web form.
func Examples() []Example {
	return []Example{
		{
			Name: "High churn risk",
			Fields: map[string]any{
				"gender": "Female", "Partner": "No", "Dependents": "No",
				"PhoneService": "Yes", "MultipleLines": "No",
				"InternetService": "Fiber optic", "OnlineSecurity": "No", "OnlineBackup": "No",
				"DeviceProtection": "No", "TechSupport": "No", "StreamingTV": "Yes", "StreamingMovies": "Yes",
				"Contract": "Month-to-month", "PaperlessBilling": "Yes", "PaymentMethod": "Electronic check",
				"tenure": 1, "MonthlyCharges": 85.0, "TotalCharges": 85.0,
			},
		},
		{
			Name: "Low churn risk",
			Fields: map[string]any{
				"gender": "Male", "Partner": "Yes", "Dependents": "Yes",
				"PhoneService": "Yes", "MultipleLines": "Yes",
				"InternetService": "DSL", "OnlineSecurity": "Yes", "OnlineBackup": "Yes",
				"DeviceProtection": "Yes", "TechSupport": "Yes", "StreamingTV": "No", "StreamingMovies": "No",
				"Contract": "Two year", "PaperlessBilling": "No", "PaymentMethod": "Credit card (automatic)",
				"tenure": 60, "MonthlyCharges": 45.0, "TotalCharges": 2700.0,
			},
		},
	}
}
