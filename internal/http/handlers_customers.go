package http

import (
	"fmt"
	"net/http"
	"strings"

	"astrofin/internal/api"
	"astrofin/internal/core"
	"astrofin/internal/views"
)

type customersPage struct {
	page
	Search    string
	Customers []core.Customer
	Draft     views.CustomerForm
	Estimated core.Money

	// Set when a customer is selected.
	Selected *core.Customer
	Edit     views.CustomerForm
	EditDue  core.Money
	History  views.History
	PayDraft api.ClientPaymentInput
}

// customerSelection is what the page shows besides the list.
type customerSelection struct {
	search   string
	selected int64
	// edit replaces the stored record in the edit form after a refused update.
	edit *views.CustomerForm
}

func selectionFrom(r *http.Request) customerSelection {
	q := r.URL.Query()
	return customerSelection{search: strings.TrimSpace(q.Get("q")), selected: formID(q, "selected")}
}

func customersURL(id int64) string {
	return fmt.Sprintf("/customers?selected=%d", id)
}

func (s *Server) renderCustomers(w http.ResponseWriter, r *http.Request, c *caller, status int, sel customerSelection) {
	st := c.customers.State()
	draft := c.customers.Draft()
	meta := s.page(r, c, "Clients", "customers").with(st.Status, st.Message, c.customers.TakeNotice())
	data := customersPage{
		page:      meta,
		Search:    sel.search,
		Customers: c.customers.Sorted(sel.search),
		Draft:     draft,
		Estimated: draft.EstimatedDue(),
	}
	if cust, ok := c.customers.Find(sel.selected); ok {
		data.Selected = &cust
		data.Edit = views.FormFor(cust)
		if sel.edit != nil {
			data.Edit = *sel.edit
		}
		data.EditDue = data.Edit.EstimatedDue()
		data.History = c.customers.History()
		data.PayDraft = c.customers.PaymentDraft()
		if data.PayDraft.Customer != cust.ID {
			data.PayDraft = api.ClientPaymentInput{Customer: cust.ID, Date: meta.Today}
		}
	}
	s.render(w, r, status, "customers.html", meta, data)
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request, c *caller) {
	ctx := r.Context()
	sel := selectionFrom(r)
	rerender := func(status int) { s.renderCustomers(w, r, c, status, sel) }

	if err := c.customers.Load(ctx); err != nil {
		s.rejected(w, r, err, rerender)
		return
	}
	if sel.selected != 0 {
		// A failed history fetch is shown inside the history panel.
		if err := c.customers.Select(ctx, sel.selected); api.IsUnauthorized(err) {
			s.toLogin(w, r)
			return
		}
	}
	s.renderCustomers(w, r, c, http.StatusOK, sel)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request, c *caller) {
	if !parseForm(w, r) {
		return
	}
	if err := c.customers.Submit(r.Context(), customerForm(r.PostForm)); !views.Saved(err) {
		s.rejected(w, r, err, func(status int) { s.renderCustomers(w, r, c, status, customerSelection{}) })
		return
	}
	c.customers.SetNotice("Client added")
	seeOther(w, r, "/customers")
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request, c *caller) {
	id, ok := pathID(r)
	if !ok {
		ErrorResponse(http.StatusBadRequest, "Invalid record id").Write(w)
		return
	}
	if !parseForm(w, r) {
		return
	}
	form := customerForm(r.PostForm)
	if err := c.customers.Update(r.Context(), id, form); !views.Saved(err) {
		s.rejected(w, r, err, func(status int) {
			s.renderCustomers(w, r, c, status, customerSelection{selected: id, edit: &form})
		})
		return
	}
	c.customers.SetNotice("Client updated")
	seeOther(w, r, customersURL(id))
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request, c *caller) {
	s.deleteRecord(w, r, c, c.customers.Delete, "/customers", func(status int) {
		s.renderCustomers(w, r, c, status, customerSelection{})
	})
}

func (s *Server) handleAddCustomerPayment(w http.ResponseWriter, r *http.Request, c *caller) {
	id, ok := pathID(r)
	if !ok {
		ErrorResponse(http.StatusBadRequest, "Invalid record id").Write(w)
		return
	}
	if !parseForm(w, r) {
		return
	}
	if err := c.customers.AddPayment(r.Context(), clientPaymentForm(id, r.PostForm)); !views.Saved(err) {
		s.rejected(w, r, err, func(status int) {
			s.renderCustomers(w, r, c, status, customerSelection{selected: id})
		})
		return
	}
	c.customers.SetNotice("Payment recorded")
	seeOther(w, r, customersURL(id))
}
