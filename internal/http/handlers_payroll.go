package http

import (
	"fmt"
	"net/http"

	"astrofin/internal/api"
	"astrofin/internal/core"
	"astrofin/internal/views"
)

type payrollPage struct {
	page
	Employees []core.Employee
	Payments  []core.PayrollPayment
	Draft     api.EmployeeInput
	PayDraft  api.PayrollInput
	Statuses  []core.EmployeeStatus

	// Set when one employee's history is open.
	Employee *core.Employee
	History  []core.PayrollPayment
	HistErr  string
	// Edit is the employee form; it falls back to the stored record.
	Edit api.EmployeeInput
}

type payrollSelection struct {
	employee int64
	edit     *api.EmployeeInput
}

func (s *Server) renderPayroll(w http.ResponseWriter, r *http.Request, c *caller, status int, sel payrollSelection) {
	ctx := r.Context()
	st := c.payroll.State()
	meta := s.page(r, c, "Payroll", "payroll").with(st.Status, st.Message, c.payroll.TakeNotice())
	data := payrollPage{
		page:      meta,
		Employees: st.Records,
		Payments:  c.payroll.Payments(),
		Draft:     c.payroll.Draft(),
		PayDraft:  c.payroll.PayDraft(),
		Statuses:  core.EmployeeStatuses(),
	}
	if data.PayDraft.PaymentDate == "" {
		data.PayDraft.PaymentDate = meta.Today
	}
	for _, e := range st.Records {
		if e.ID != sel.employee {
			continue
		}
		data.Employee = &e
		data.Edit = api.EmployeeInput{
			Name:       e.Name,
			Role:       e.Role,
			BaseSalary: e.BaseSalary.String(),
			Email:      e.Email,
			Status:     string(e.Status.Display()),
		}
		if sel.edit != nil {
			data.Edit = *sel.edit
		}
		history, err := c.payroll.History(ctx, e.ID)
		if err != nil {
			data.HistErr = api.MessageOr(err, "Failed to load payment history")
		}
		data.History = history
		break
	}
	s.render(w, r, status, "payroll.html", meta, data)
}

func payrollURL(id int64) string {
	return fmt.Sprintf("/payroll?employee=%d", id)
}

func (s *Server) handlePayroll(w http.ResponseWriter, r *http.Request, c *caller) {
	sel := payrollSelection{employee: formID(r.URL.Query(), "employee")}
	if err := c.payroll.Load(r.Context()); err != nil {
		s.rejected(w, r, err, func(status int) { s.renderPayroll(w, r, c, status, sel) })
		return
	}
	s.renderPayroll(w, r, c, http.StatusOK, sel)
}

func (s *Server) handleCreateEmployee(w http.ResponseWriter, r *http.Request, c *caller) {
	if !parseForm(w, r) {
		return
	}
	if err := c.payroll.Submit(r.Context(), employeeForm(r.PostForm)); !views.Saved(err) {
		s.rejected(w, r, err, func(status int) { s.renderPayroll(w, r, c, status, payrollSelection{}) })
		return
	}
	c.payroll.SetNotice("Employee added")
	seeOther(w, r, "/payroll")
}

func (s *Server) handleUpdateEmployee(w http.ResponseWriter, r *http.Request, c *caller) {
	id, ok := pathID(r)
	if !ok {
		ErrorResponse(http.StatusBadRequest, "Invalid record id").Write(w)
		return
	}
	if !parseForm(w, r) {
		return
	}
	form := employeeForm(r.PostForm)
	if err := c.payroll.UpdateEmployee(r.Context(), id, form); !views.Saved(err) {
		s.rejected(w, r, err, func(status int) {
			s.renderPayroll(w, r, c, status, payrollSelection{employee: id, edit: &form})
		})
		return
	}
	c.payroll.SetNotice("Employee updated")
	seeOther(w, r, payrollURL(id))
}

func (s *Server) handleDeleteEmployee(w http.ResponseWriter, r *http.Request, c *caller) {
	s.deleteRecord(w, r, c, c.payroll.Delete, "/payroll", func(status int) {
		s.renderPayroll(w, r, c, status, payrollSelection{})
	})
}

// handlePayEmployee records a salary payment. A blank amount means the
// employee's base salary.
func (s *Server) handlePayEmployee(w http.ResponseWriter, r *http.Request, c *caller) {
	if !parseForm(w, r) {
		return
	}
	form := payrollForm(r.PostForm)
	if form.Amount == "" && form.Employee != 0 {
		form.Amount = c.payroll.DefaultAmount(form.Employee)
	}
	if err := c.payroll.Pay(r.Context(), form); !views.Saved(err) {
		s.rejected(w, r, err, func(status int) {
			s.renderPayroll(w, r, c, status, payrollSelection{employee: form.Employee})
		})
		return
	}
	c.payroll.SetNotice("Salary payment recorded")
	seeOther(w, r, payrollURL(form.Employee))
}
