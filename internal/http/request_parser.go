package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"astrofin/internal/api"
	"astrofin/internal/views"
)

// Form values are passed on as typed: amounts stay decimal strings and
// the backend does the parsing.

func formText(form url.Values, key string) string {
	return sanitizeInput(form.Get(key))
}

// formBool treats a present checkbox ("on", "true", "1") as checked.
func formBool(form url.Values, key string) bool {
	switch strings.ToLower(strings.TrimSpace(form.Get(key))) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// formID parses a positive record id; anything else is 0.
func formID(form url.Values, key string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(form.Get(key)), 10, 64)
	if err != nil || id < 1 {
		return 0
	}
	return id
}

// pathID reads the {id} route segment.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func incomeForm(form url.Values) api.IncomeInput {
	return api.IncomeInput{
		Source:      formText(form, "source"),
		Amount:      formText(form, "amount"),
		Date:        formText(form, "date"),
		Description: formText(form, "description"),
	}
}

func expenseForm(form url.Values) api.ExpenseInput {
	return api.ExpenseInput{
		Category:    formText(form, "category"),
		Amount:      formText(form, "amount"),
		Date:        formText(form, "date"),
		Description: formText(form, "description"),
	}
}

func liabilityForm(form url.Values) views.LiabilityForm {
	return views.LiabilityForm{
		Title:       formText(form, "title"),
		TotalAmount: formText(form, "total_amount"),
		PaidAmount:  formText(form, "paid_amount"),
		DueDate:     formText(form, "due_date"),
	}
}

func customerForm(form url.Values) views.CustomerForm {
	return views.CustomerForm{
		Name:               formText(form, "name"),
		ProjectName:        formText(form, "project_name"),
		DomainName:         formText(form, "domain_name"),
		Description:        formText(form, "description"),
		TotalAmount:        formText(form, "total_amount"),
		AdvanceAmount:      formText(form, "advance_amount"),
		IsPaymentConfirmed: formBool(form, "is_payment_confirmed"),
		IsProjectDelivered: formBool(form, "is_project_delivered"),
		DeliveryDate:       formText(form, "delivery_date"),
	}
}

func clientPaymentForm(customerID int64, form url.Values) api.ClientPaymentInput {
	return api.ClientPaymentInput{
		Customer: customerID,
		Amount:   formText(form, "amount"),
		Date:     formText(form, "date"),
		Note:     formText(form, "note"),
	}
}

func employeeForm(form url.Values) api.EmployeeInput {
	return api.EmployeeInput{
		Name:       formText(form, "name"),
		Role:       formText(form, "role"),
		BaseSalary: formText(form, "base_salary"),
		Email:      formText(form, "email"),
		Status:     formText(form, "status"),
	}
}

func payrollForm(form url.Values) api.PayrollInput {
	return api.PayrollInput{
		Employee:    formID(form, "employee"),
		Amount:      formText(form, "amount"),
		Title:       formText(form, "title"),
		PaymentDate: formText(form, "payment_date"),
	}
}
