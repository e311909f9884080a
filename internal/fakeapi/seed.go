package fakeapi

import (
	"time"

	"astrofin/internal/core"
)

// DemoUser and DemoPassword are the credentials SeedDemo registers.
const (
	DemoUser     = "demo"
	DemoPassword = "demo"
)

// SeedDemo registers the demo user and fills every ledger with a few
// months of plausible records relative to the server clock.
func (s *Server) SeedDemo() {
	s.AddUser(DemoUser, DemoPassword)

	now := s.clock.Now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	day := func(monthsAgo, d int) core.Date {
		return core.DateOf(first.AddDate(0, -monthsAgo, d-1))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for m := 5; m >= 0; m-- {
		s.income = append(s.income,
			core.Income{ID: s.newID("income"), Source: "Consulting", Amount: core.MustMoney("3200.00"), Date: day(m, 3)},
			core.Income{ID: s.newID("income"), Source: "Hosting resale", Amount: core.MustMoney("450.00"), Date: day(m, 15), Description: "Monthly plans"},
		)
		s.expenses = append(s.expenses,
			core.Expense{ID: s.newID("expenses"), Category: core.CategoryHousing, Amount: core.MustMoney("900.00"), Date: day(m, 1), Description: "Office rent"},
			core.Expense{ID: s.newID("expenses"), Category: core.CategoryUtilities, Amount: core.MustMoney("120.50"), Date: day(m, 9)},
			core.Expense{ID: s.newID("expenses"), Category: core.CategoryFood, Amount: core.MustMoney("210.75"), Date: day(m, 20)},
		)
	}

	s.liabilities = append(s.liabilities,
		core.Liability{ID: s.newID("liabilities"), Title: "Equipment loan", TotalAmount: core.MustMoney("5000.00"), PaidAmount: core.MustMoney("1250.00"), DueDate: day(-6, 1)},
		core.Liability{ID: s.newID("liabilities"), Title: "Laptop instalments", TotalAmount: core.MustMoney("1800.00"), PaidAmount: core.MustMoney("1800.00"), IsSettled: true},
	)

	acme := core.Customer{ID: s.newID("customers"), Name: "Acme Traders", ProjectName: "Storefront", DomainName: "acme.example", TotalAmount: core.MustMoney("4000.00"), AdvanceAmount: core.MustMoney("1000.00"), IsPaymentConfirmed: true}
	north := core.Customer{ID: s.newID("customers"), Name: "Northwind", ProjectName: "Booking portal", TotalAmount: core.MustMoney("2500.00"), AdvanceAmount: core.MustMoney("2500.00"), IsPaymentConfirmed: true, IsProjectDelivered: true, DeliveryDate: day(1, 12)}
	s.customers = append(s.customers, acme, north)
	s.cpayments = append(s.cpayments,
		core.ClientPayment{ID: s.newID("customer-payments"), Customer: acme.ID, Amount: core.MustMoney("500.00"), Date: day(1, 5), Note: "Milestone 1"},
	)

	asha := core.Employee{ID: s.newID("employees"), Name: "Asha Rao", Role: "Designer", BaseSalary: core.MustMoney("1500.00"), Email: "asha@example.com", Status: core.StatusActive, JoinedDate: day(5, 1)}
	ravi := core.Employee{ID: s.newID("employees"), Name: "Ravi Menon", Role: "Developer", BaseSalary: core.MustMoney("2200.00"), Status: core.StatusOnLeave, JoinedDate: day(4, 1)}
	s.employees = append(s.employees, asha, ravi)
	for m := 2; m >= 1; m-- {
		for _, e := range []core.Employee{asha, ravi} {
			p := core.PayrollPayment{ID: s.newID("payroll"), Employee: e.ID, Amount: e.BaseSalary, Title: core.DefaultPayrollTitle, PaymentDate: day(m, 28)}
			s.payroll = append(s.payroll, p)
			s.addExpenseLocked(core.Expense{
				Category:    core.CategorySalary,
				Amount:      p.Amount,
				Date:        p.PaymentDate,
				Description: "Salary Payment: " + e.Name + " (" + p.Title + ")",
			})
		}
	}
}
