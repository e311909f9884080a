package http

import (
	"net/http"

	"astrofin/internal/api"
	"astrofin/internal/chart"
	"astrofin/internal/core"
)

type dashboardPage struct {
	page
	Stats      core.DashboardStats
	Months     []chart.MonthBar
	Categories []chart.CategoryBar
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, c *caller) {
	err := c.dashboard.Load(r.Context())
	if api.IsUnauthorized(err) {
		s.toLogin(w, r)
		return
	}

	st := c.dashboard.State()
	meta := s.page(r, c, "Dashboard", "dashboard").with(st.Status, st.Message, "")
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	s.render(w, r, status, "dashboard.html", meta, dashboardPage{
		page:       meta,
		Stats:      st.Stats,
		Months:     chart.Monthly(st.Stats.MonthlyStats),
		Categories: chart.Categories(st.Stats.CategoryStats),
	})
}
