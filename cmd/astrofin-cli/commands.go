package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"astrofin/internal/amqp"
	"astrofin/internal/api"
	"astrofin/internal/core"
	applog "astrofin/internal/log"
	"astrofin/internal/session"
	"astrofin/internal/sheets"
	"astrofin/internal/sheets/google"
	"astrofin/internal/sheets/memory"
	"astrofin/internal/views"
)

func (a *app) login(args []string) error {
	fs := a.flags("login")
	username := fs.StringP("username", "u", "", "backend username")
	password := fs.StringP("password", "p", "", "backend password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		*username = a.prompt("Username: ")
	}
	if *password == "" {
		pw, err := a.secret("Password: ")
		if err != nil {
			return err
		}
		*password = pw
	}
	if *username == "" || *password == "" {
		return errors.New("username and password are required")
	}
	if err := a.client.Login(a.ctx, *username, *password); err != nil {
		return &cmdError{msg: api.MessageOr(err, "Login failed"), err: err}
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", *username)
	return nil
}

func (a *app) logout(_ []string) error {
	if err := a.client.Logout(a.ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *app) status(_ []string) error {
	info, err := a.client.Session().Info(a.ctx)
	if errors.Is(err, session.ErrNotLoggedIn) {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	if err != nil {
		return err
	}
	who := info.Username
	if who == "" {
		who = "unknown user"
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", who)
	if !info.LoggedInAt.IsZero() {
		fmt.Fprintf(a.out, "Since %s\n", humanize.RelTime(info.LoggedInAt, a.clock.Now(), "ago", "from now"))
	}
	if !info.ExpiresAt.IsZero() {
		verb := "Token expires"
		if !info.ExpiresAt.After(a.clock.Now()) {
			verb = "Token expired"
		}
		fmt.Fprintf(a.out, "%s %s\n", verb, humanize.RelTime(info.ExpiresAt, a.clock.Now(), "ago", "from now"))
	}
	fmt.Fprintf(a.out, "Backend %s\n", a.cfg.APIURL)
	return nil
}

func (a *app) summary(_ []string) error {
	d := views.NewDashboard(a.client, a.opts...)
	if err := d.Load(a.ctx); err != nil {
		return a.viewError(err, d.State().Message)
	}
	fmt.Fprintln(a.out, a.render.Summary(d.State().Stats))
	return nil
}

func (a *app) income(args []string) error {
	v := views.NewIncome(a.client, a.opts...)
	act, rest := action(args, "list")
	switch act {
	case "list":
		if err := v.Load(a.ctx); err != nil {
			return a.viewError(err, v.State().Message)
		}
		fmt.Fprintln(a.out, a.render.Income(v.Records()))
		return nil
	case "add":
		draft := v.Draft()
		fs := a.flags("income add")
		fs.StringVar(&draft.Source, "source", "", "where the money came from")
		fs.StringVar(&draft.Amount, "amount", "", "amount, e.g. 1500.00")
		fs.StringVar(&draft.Date, "date", draft.Date, "date (YYYY-MM-DD)")
		fs.StringVar(&draft.Description, "description", "", "free text")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := a.saved(v.Submit(a.ctx, draft), v.State().Message); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Income added")
		return nil
	case "delete":
		return a.deleteRecord("income", rest, v.Delete, func() string { return v.State().Message })
	}
	return unknownAction("income", act)
}

func (a *app) expenses(args []string) error {
	v := views.NewExpenses(a.client, a.opts...)
	act, rest := action(args, "list")
	switch act {
	case "list":
		if err := v.Load(a.ctx); err != nil {
			return a.viewError(err, v.State().Message)
		}
		fmt.Fprintln(a.out, a.render.Expenses(v.Records()))
		return nil
	case "add":
		draft := v.Draft()
		cats := make([]string, 0, len(v.Categories()))
		for _, c := range v.Categories() {
			cats = append(cats, string(c))
		}
		fs := a.flags("expenses add")
		fs.StringVar(&draft.Category, "category", draft.Category, "one of "+strings.Join(cats, ", "))
		fs.StringVar(&draft.Amount, "amount", "", "amount, e.g. 250.00")
		fs.StringVar(&draft.Date, "date", draft.Date, "date (YYYY-MM-DD)")
		fs.StringVar(&draft.Description, "description", "", "free text")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := a.saved(v.Submit(a.ctx, draft), v.State().Message); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Expense added")
		return nil
	case "delete":
		return a.deleteRecord("expense", rest, v.Delete, func() string { return v.State().Message })
	}
	return unknownAction("expenses", act)
}

func (a *app) liabilities(args []string) error {
	v := views.NewLiabilities(a.client, a.opts...)
	act, rest := action(args, "list")
	switch act {
	case "list":
		if err := v.Load(a.ctx); err != nil {
			return a.viewError(err, v.State().Message)
		}
		fmt.Fprintln(a.out, a.render.Liabilities(v.Rows()))
		return nil
	case "add":
		var form views.LiabilityForm
		fs := a.flags("liabilities add")
		fs.StringVar(&form.Title, "title", "", "what is owed")
		fs.StringVar(&form.TotalAmount, "total", "", "total amount owed")
		fs.StringVar(&form.PaidAmount, "paid", "", "amount already paid (default 0)")
		fs.StringVar(&form.DueDate, "due", "", "due date (YYYY-MM-DD), optional")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := a.saved(v.Submit(a.ctx, form), v.State().Message); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Liability added")
		return nil
	case "delete":
		return a.deleteRecord("liability", rest, v.Delete, func() string { return v.State().Message })
	case "pay":
		fs := a.flags("liabilities pay")
		amount := fs.String("amount", "", "amount to pay")
		date := fs.String("date", "", "payment date (default today)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		id, err := parseID(fs.Args())
		if err != nil {
			return err
		}
		// The remaining balance check runs against a fresh list.
		if err := v.Load(a.ctx); err != nil {
			return a.viewError(err, v.State().Message)
		}
		res, err := v.Pay(a.ctx, id, *amount, *date)
		if err := a.saved(err, v.State().Message); err != nil {
			return err
		}
		fmt.Fprintln(a.out, v.TakeNotice())
		fmt.Fprintf(a.out, "Remaining balance: %s\n", core.FormatCurrency(res.NewBalance, a.cfg.CurrencyPrefix))
		return nil
	}
	return unknownAction("liabilities", act)
}

func (a *app) clients(args []string) error {
	v := views.NewCustomers(a.client, a.opts...)
	act, rest := action(args, "list")
	switch act {
	case "list":
		fs := a.flags("clients list")
		search := fs.StringP("search", "s", "", "filter by client or project name")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := v.Load(a.ctx); err != nil {
			return a.viewError(err, v.State().Message)
		}
		fmt.Fprintln(a.out, a.render.Customers(v.Sorted(*search)))
		return nil
	case "show":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		c, err := a.loadCustomer(v, id)
		if err != nil {
			return err
		}
		if err := v.Select(a.ctx, id); err != nil {
			return a.viewError(err, v.History().Message)
		}
		fmt.Fprintln(a.out, a.render.ClientPayments(c, v.History()))
		return nil
	case "add":
		var form views.CustomerForm
		fs := a.flags("clients add")
		customerFlags(fs, &form)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := a.saved(v.Submit(a.ctx, form), v.State().Message); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Client added, estimated due %s\n", core.FormatCurrency(form.EstimatedDue(), a.cfg.CurrencyPrefix))
		return nil
	case "update":
		var patch views.CustomerForm
		fs := a.flags("clients update")
		customerFlags(fs, &patch)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		id, err := parseID(fs.Args())
		if err != nil {
			return err
		}
		c, err := a.loadCustomer(v, id)
		if err != nil {
			return err
		}
		form := mergeCustomer(views.FormFor(c), patch, fs.Changed)
		if err := a.saved(v.Update(a.ctx, id, form), v.State().Message); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Client updated")
		return nil
	case "delete":
		return a.deleteRecord("customer", rest, v.Delete, func() string { return v.State().Message })
	case "pay":
		form := api.ClientPaymentInput{Date: a.today()}
		fs := a.flags("clients pay")
		fs.StringVar(&form.Amount, "amount", "", "amount received")
		fs.StringVar(&form.Date, "date", form.Date, "payment date (YYYY-MM-DD)")
		fs.StringVar(&form.Note, "note", "", "free text")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		id, err := parseID(fs.Args())
		if err != nil {
			return err
		}
		if _, err := a.loadCustomer(v, id); err != nil {
			return err
		}
		form.Customer = id
		if err := a.saved(v.AddPayment(a.ctx, form), v.State().Message); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Payment recorded")
		if c, ok := v.Find(id); ok {
			fmt.Fprintln(a.out, a.render.ClientPayments(c, v.History()))
		}
		return nil
	}
	return unknownAction("clients", act)
}

func (a *app) loadCustomer(v *views.Customers, id int64) (core.Customer, error) {
	if err := v.Load(a.ctx); err != nil {
		return core.Customer{}, a.viewError(err, v.State().Message)
	}
	c, ok := v.Find(id)
	if !ok {
		return core.Customer{}, fmt.Errorf("client %d not found", id)
	}
	return c, nil
}

func customerFlags(fs *pflag.FlagSet, f *views.CustomerForm) {
	fs.StringVar(&f.Name, "name", "", "client name")
	fs.StringVar(&f.ProjectName, "project", "", "project name")
	fs.StringVar(&f.DomainName, "domain", "", "domain name")
	fs.StringVar(&f.Description, "description", "", "free text")
	fs.StringVar(&f.TotalAmount, "total", "", "agreed total")
	fs.StringVar(&f.AdvanceAmount, "advance", "", "advance received (default 0)")
	fs.BoolVar(&f.IsPaymentConfirmed, "confirmed", false, "payment confirmed")
	fs.BoolVar(&f.IsProjectDelivered, "delivered", false, "project delivered")
	fs.StringVar(&f.DeliveryDate, "delivery-date", "", "delivery date (YYYY-MM-DD)")
}

// mergeCustomer overlays the flags the operator set on the stored form.
func mergeCustomer(base, patch views.CustomerForm, changed func(string) bool) views.CustomerForm {
	set := func(dst *string, src, name string) {
		if changed(name) {
			*dst = src
		}
	}
	set(&base.Name, patch.Name, "name")
	set(&base.ProjectName, patch.ProjectName, "project")
	set(&base.DomainName, patch.DomainName, "domain")
	set(&base.Description, patch.Description, "description")
	set(&base.TotalAmount, patch.TotalAmount, "total")
	set(&base.AdvanceAmount, patch.AdvanceAmount, "advance")
	set(&base.DeliveryDate, patch.DeliveryDate, "delivery-date")
	if changed("confirmed") {
		base.IsPaymentConfirmed = patch.IsPaymentConfirmed
	}
	if changed("delivered") {
		base.IsProjectDelivered = patch.IsProjectDelivered
	}
	return base
}

func (a *app) employees(args []string) error {
	v := views.NewPayroll(a.client, a.opts...)
	act, rest := action(args, "list")
	switch act {
	case "list":
		if err := v.Load(a.ctx); err != nil {
			return a.viewError(err, v.State().Message)
		}
		fmt.Fprintln(a.out, a.render.Employees(v.Records()))
		return nil
	case "add", "update":
		form := v.Draft()
		fs := a.flags("employees " + act)
		fs.StringVar(&form.Name, "name", "", "employee name")
		fs.StringVar(&form.Role, "role", "", "role")
		fs.StringVar(&form.BaseSalary, "salary", "", "base salary")
		fs.StringVar(&form.Email, "email", "", "email address")
		fs.StringVar(&form.Status, "status", form.Status, "Active, On Leave or Terminated")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if act == "add" {
			if err := a.saved(v.Submit(a.ctx, form), v.State().Message); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Employee added")
			return nil
		}
		id, err := parseID(fs.Args())
		if err != nil {
			return err
		}
		if err := v.Load(a.ctx); err != nil {
			return a.viewError(err, v.State().Message)
		}
		var current *core.Employee
		for _, e := range v.Records() {
			if e.ID == id {
				current = &e
				break
			}
		}
		if current == nil {
			return fmt.Errorf("employee %d not found", id)
		}
		keep := func(dst *string, stored, name string) {
			if !fs.Changed(name) {
				*dst = stored
			}
		}
		keep(&form.Name, current.Name, "name")
		keep(&form.Role, current.Role, "role")
		keep(&form.BaseSalary, current.BaseSalary.String(), "salary")
		keep(&form.Email, current.Email, "email")
		keep(&form.Status, string(current.Status.Display()), "status")
		if err := a.saved(v.UpdateEmployee(a.ctx, id, form), v.State().Message); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Employee updated")
		return nil
	case "delete":
		return a.deleteRecord("employee", rest, v.Delete, func() string { return v.State().Message })
	}
	return unknownAction("employees", act)
}

func (a *app) payroll(args []string) error {
	v := views.NewPayroll(a.client, a.opts...)
	act, rest := action(args, "list")
	switch act {
	case "list":
		fs := a.flags("payroll list")
		employee := fs.Int64("employee", 0, "only this employee's payments")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *employee > 0 {
			list, err := v.History(a.ctx, *employee)
			if err != nil {
				return a.viewError(err, api.MessageOr(err, "Failed to load payroll"))
			}
			fmt.Fprintln(a.out, a.render.Payroll(list))
			return nil
		}
		if err := v.Load(a.ctx); err != nil {
			return a.viewError(err, v.State().Message)
		}
		fmt.Fprintln(a.out, a.render.Payroll(v.Payments()))
		return nil
	case "pay":
		form := api.PayrollInput{PaymentDate: a.today()}
		fs := a.flags("payroll pay")
		fs.Int64Var(&form.Employee, "employee", 0, "employee ID")
		fs.StringVar(&form.Amount, "amount", "", "amount (default base salary)")
		fs.StringVar(&form.Title, "title", "", "payment title")
		fs.StringVar(&form.PaymentDate, "date", form.PaymentDate, "payment date (YYYY-MM-DD)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := v.Load(a.ctx); err != nil {
			return a.viewError(err, v.State().Message)
		}
		if form.Amount == "" {
			form.Amount = v.DefaultAmount(form.Employee)
		}
		if err := a.saved(v.Pay(a.ctx, form), v.State().Message); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Salary payment recorded")
		return nil
	}
	return unknownAction("payroll", act)
}

func (a *app) exportSheets(args []string) error {
	fs := a.flags("export-sheets")
	mode := fs.String("mode", "ledger", "ledger (all income and expenses) or recent (dashboard list)")
	since := fs.String("since", "", "skip rows dated before this day (YYYY-MM-DD)")
	header := fs.Bool("header", false, "write the column titles first")
	dryRun := fs.Bool("dry-run", false, "print the rows instead of appending them")
	sheet := fs.String("sheet", a.cfg.GoogleSheetName, "target sheet name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := sheets.Options{Header: *header}
	if *since != "" {
		d, err := core.ParseDate(*since)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		opts.Since = d
	}

	var out sheets.RowAppender
	var dry *memory.Store
	if *dryRun {
		dry = memory.New()
		out = dry
	} else {
		gc, err := google.New(a.ctx, google.ConfigFrom(a.cfg), a.logger)
		if err != nil {
			return err
		}
		out = gc
	}
	exp := sheets.NewExporter(out, *sheet, a.logger)

	var res sheets.Result
	var err error
	switch *mode {
	case "ledger":
		res, err = exp.ExportLedger(a.ctx, a.client, opts)
	case "recent":
		res, err = exp.ExportRecent(a.ctx, a.client, opts)
	default:
		return fmt.Errorf("unknown export mode %q", *mode)
	}
	if err != nil {
		if api.IsUnauthorized(err) {
			return errSessionExpired
		}
		return err
	}

	if dry != nil {
		for _, row := range dry.Rows(res.Sheet) {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = fmt.Sprint(v)
			}
			fmt.Fprintln(a.out, strings.Join(cells, "\t"))
		}
		return nil
	}
	fmt.Fprintf(a.out, "Appended %d rows to %s\n", res.Rows, res.Sheet)
	return nil
}

func (a *app) events(_ []string) error {
	if a.cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is not set")
	}
	ctx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := amqp.Subscribe(ctx, a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPRoutingPrefix, a.logger,
		func(ev *amqp.MutationEvent) error {
			fmt.Fprintf(a.out, "%s  %-32s id=%d\n",
				ev.Timestamp.Local().Format(time.DateTime), ev.RoutingKey(a.cfg.AMQPRoutingPrefix), ev.ID)
			return nil
		})
	if errors.Is(err, context.Canceled) {
		a.logger.Debug("Event stream stopped", applog.FieldOperation, applog.OpShutdown)
		return nil
	}
	return err
}
