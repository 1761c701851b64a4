package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/pantry/internal/adapter/client"
	"github.com/rl1809/pantry/internal/core/domain"
	"github.com/rl1809/pantry/internal/core/service"
	"github.com/rl1809/pantry/internal/platform/logger"
)

const usage = `usage: pantryctl [flags] <command> [args]

commands:
  login <email> <password>
  list [-search s] [-category c] [-expiry all|expiring|expired] [-sort expiry|name|category]
  add -name n -category c -quantity q -unit u -location l -expiry YYYY-MM-DD
  consume <id,id,...> <quantity>
  delete <id,id,...>
  ingest <image> [location]
`

func main() {
	baseURL := flag.String("url", envOr("PANTRY_REMOTE_BASE_URL", "http://localhost:8000"), "backend base URL")
	token := flag.String("token", os.Getenv("PANTRY_TOKEN"), "access token")
	userID := flag.String("user", os.Getenv("PANTRY_USER_ID"), "user id")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	verbose := flag.Bool("v", false, "log reconciler activity")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log := logger.Nop()
	if *verbose {
		l, err := logger.New("dev")
		if err == nil {
			log = l
			defer log.Sync()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	api := client.New(*baseURL, *timeout)
	app := &cli{
		api:     api,
		session: domain.Session{UserID: *userID, Token: *token},
		svc: service.NewInventoryService(client.NewProvider(api), service.NewReconciler(4, log),
			service.WithLogger(log)),
	}

	if err := app.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pantryctl: %v\n", err)
		if errors.Is(err, domain.ErrUnauthenticated) {
			fmt.Fprintln(os.Stderr, "run `pantryctl login` and export the printed variables")
		}
		os.Exit(1)
	}
}

type cli struct {
	api     *client.Client
	session domain.Session
	svc     *service.InventoryService
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.login(ctx, args)
	case "list":
		return c.list(ctx, args)
	case "add":
		return c.add(ctx, args)
	case "consume":
		return c.consume(ctx, args)
	case "delete":
		return c.remove(ctx, args)
	case "ingest":
		return c.ingest(ctx, args)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (c *cli) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("login needs <email> <password>")
	}
	authed, err := c.api.Login(ctx, client.Credentials{Email: args[0], Password: args[1]})
	if err != nil {
		return err
	}
	s := authed.Session()
	fmt.Printf("export PANTRY_TOKEN=%s\nexport PANTRY_USER_ID=%s\n", s.Token, s.UserID)
	return nil
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	search := fs.String("search", "", "name substring")
	category := fs.String("category", "", "category")
	expiry := fs.String("expiry", "all", "expiry filter")
	sort := fs.String("sort", "expiry", "sort key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := service.Query{
		Search: *search,
		Expiry: service.ExpiryFilter(*expiry),
		Sort:   service.SortKey(*sort),
	}
	if *category != "" {
		cat, err := domain.ParseCategory(*category)
		if err != nil {
			return err
		}
		q.Category = cat
	}

	view, err := c.svc.List(ctx, c.session, q)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tQUANTITY\tCATEGORY\tEXPIRES\tIDS")
	for _, item := range view.Items {
		fmt.Fprintf(tw, "%s\t%g %s\t%s\t%s\t%s\n", item.Name, item.Quantity, item.Unit,
			item.Category, item.ExpiryDate, strings.Join(item.MergedIDs, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d expired, %d expiring soon, %d fresh (%d records)\n",
		view.Counts.Expired, view.Counts.ExpiringSoon, view.Counts.Fresh, view.Counts.Total)
	return nil
}

func (c *cli) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	name := fs.String("name", "", "item name")
	category := fs.String("category", string(domain.CategoryOther), "category")
	quantity := fs.Float64("quantity", 1, "quantity")
	unit := fs.String("unit", string(domain.UnitPieces), "unit")
	location := fs.String("location", "fridge", "storage location")
	expiry := fs.String("expiry", "", "expiry date YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return err
	}

	date, err := domain.ParseDate(*expiry)
	if err != nil {
		return err
	}
	rec, err := c.svc.Add(ctx, c.session, domain.NewRecord{
		Name:            *name,
		Category:        domain.Category(*category),
		Quantity:        *quantity,
		Unit:            domain.Unit(*unit),
		StorageLocation: *location,
		ExpiryDate:      date,
	})
	if err != nil {
		return err
	}
	fmt.Printf("added %s (%g %s) as %s\n", rec.Name, rec.Quantity, rec.Unit, rec.ID)
	return nil
}

func (c *cli) consume(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("consume needs <id,id,...> <quantity>")
	}
	var quantity float64
	if _, err := fmt.Sscanf(args[1], "%g", &quantity); err != nil {
		return fmt.Errorf("parse quantity %q: %w", args[1], err)
	}
	result, err := c.svc.Consume(ctx, c.session, uuid.NewString(), splitIDs(args[0]), quantity)
	report(result)
	return err
}

func (c *cli) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("delete needs <id,id,...>")
	}
	result, err := c.svc.Delete(ctx, c.session, uuid.NewString(), splitIDs(args[0]))
	report(result)
	return err
}

func (c *cli) ingest(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("ingest needs <image> [location]")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	location := ""
	if len(args) == 2 {
		location = args[1]
	}
	drafts, err := c.api.WithSession(c.session).IngestImage(ctx, args[0], f, location)
	if err != nil {
		return err
	}
	for _, d := range drafts {
		qty := "?"
		if d.Quantity != nil {
			qty = fmt.Sprintf("%g", *d.Quantity)
		}
		unit := ""
		if d.Unit != nil {
			unit = string(*d.Unit)
		}
		fmt.Printf("draft %s: %s %s %s\n", d.ID, d.Name, qty, unit)
	}
	return nil
}

func report(result service.MutationResult) {
	for _, r := range result.Batch.Results {
		line := fmt.Sprintf("%-7s %s %s", r.Op.Kind, r.Op.RecordID, r.Status)
		if r.Err != nil {
			line += ": " + r.Err.Error()
		}
		fmt.Println(line)
	}
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
