package http

import (
	"net/http"

	"astrofin/internal/views"
)

type liabilitiesPage struct {
	page
	Rows  []views.LiabilityRow
	Draft views.LiabilityForm
	// PayID keeps the pay form of that row open after a refused payment.
	PayID     int64
	PayAmount string
	PayDate   string
}

type payAttempt struct {
	id           int64
	amount, date string
}

func (s *Server) renderLiabilities(w http.ResponseWriter, r *http.Request, c *caller, status int, pay payAttempt) {
	st := c.liabilities.State()
	meta := s.page(r, c, "Liabilities", "liabilities").with(st.Status, st.Message, c.liabilities.TakeNotice())
	s.render(w, r, status, "liabilities.html", meta, liabilitiesPage{
		page:      meta,
		Rows:      c.liabilities.Rows(),
		Draft:     c.liabilities.Draft(),
		PayID:     pay.id,
		PayAmount: pay.amount,
		PayDate:   pay.date,
	})
}

func (s *Server) handleLiabilities(w http.ResponseWriter, r *http.Request, c *caller) {
	if err := c.liabilities.Load(r.Context()); err != nil {
		s.rejected(w, r, err, func(status int) { s.renderLiabilities(w, r, c, status, payAttempt{}) })
		return
	}
	s.renderLiabilities(w, r, c, http.StatusOK, payAttempt{})
}

func (s *Server) handleCreateLiability(w http.ResponseWriter, r *http.Request, c *caller) {
	if !parseForm(w, r) {
		return
	}
	if err := c.liabilities.Submit(r.Context(), liabilityForm(r.PostForm)); !views.Saved(err) {
		s.rejected(w, r, err, func(status int) { s.renderLiabilities(w, r, c, status, payAttempt{}) })
		return
	}
	c.liabilities.SetNotice("Liability added")
	seeOther(w, r, "/liabilities")
}

func (s *Server) handleDeleteLiability(w http.ResponseWriter, r *http.Request, c *caller) {
	s.deleteRecord(w, r, c, c.liabilities.Delete, "/liabilities", func(status int) {
		s.renderLiabilities(w, r, c, status, payAttempt{})
	})
}

func (s *Server) handlePayLiability(w http.ResponseWriter, r *http.Request, c *caller) {
	id, ok := pathID(r)
	if !ok {
		ErrorResponse(http.StatusBadRequest, "Invalid record id").Write(w)
		return
	}
	if !parseForm(w, r) {
		return
	}
	ctx := r.Context()
	// The remaining-balance check runs against the list the operator saw;
	// a fresh process has none yet.
	if c.liabilities.State().Status == views.StatusIdle {
		if err := c.liabilities.Load(ctx); err != nil {
			s.rejected(w, r, err, func(status int) { s.renderLiabilities(w, r, c, status, payAttempt{}) })
			return
		}
	}

	attempt := payAttempt{id: id, amount: formText(r.PostForm, "amount"), date: formText(r.PostForm, "date")}
	if _, err := c.liabilities.Pay(ctx, id, attempt.amount, attempt.date); !views.Saved(err) {
		s.rejected(w, r, err, func(status int) { s.renderLiabilities(w, r, c, status, attempt) })
		return
	}
	seeOther(w, r, "/liabilities")
}
