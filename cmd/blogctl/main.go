// blogctl is the operator's console for a blog-lab instance: it inspects
// the moderation queue and feature requests straight from BadgerDB and
// manages the blacklist used by the comment moderator.
//
// Read commands open the database with BypassLockGuard so they work while
// the server holds the lock; write commands need the server stopped.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"blog-lab/domain"
	"blog-lab/domain/event"
	"blog-lab/logs"
	"blog-lab/projection"
	"blog-lab/repositories"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=warn"`
}

const usage = `Usage: blogctl <command> [args]

Commands:
  pending                        List posts waiting for review
  watch <server-url> <token>     Follow the approval queue live over the notification stream
  features                       List feature requests
  triage <id> <status> <prio>    Set a feature request status (accepted|declined) and priority
  blacklist                      List blacklisted words
  blacklist-add <word>...        Add words to the blacklist
  blacklist-remove <word>...     Remove words from the blacklist
`

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	command, args := flag.Arg(0), flag.Args()[1:]

	// watch talks to a running server, not to the database, so it skips
	// the config load and its required BADGER_FILEPATH.
	if command == "watch" {
		if err := watchPending(args); err != nil {
			color.Red.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	readOnly := command == "pending" || command == "features" || command == "blacklist"

	db, err := openDB(config.BadgerFilepath, readOnly)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := dispatch(db, config, command, args); err != nil {
		color.Red.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func openDB(path string, readOnly bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if readOnly {
		// BypassLockGuard allows opening while the server holds the lock.
		opts = opts.WithReadOnly(true).WithBypassLockGuard(true)
	}
	return badger.Open(opts)
}

func dispatch(db *badger.DB, config Config, command string, args []string) error {
	ctx := context.Background()
	slogger := logs.GetLoggerFromString(config.LogLevel)

	switch command {
	case "pending":
		return listPending(ctx, repositories.NewPostRepository(db, slogger))
	case "features":
		return listFeatures(ctx, repositories.NewFeatureRequestRepository(db))
	case "triage":
		return triageFeature(ctx, repositories.NewFeatureRequestRepository(db), args)
	case "blacklist":
		return listBlacklist(ctx, repositories.NewBlacklistRepository(db, slogger))
	case "blacklist-add":
		return editBlacklist(ctx, repositories.NewBlacklistRepository(db, slogger), args, true)
	case "blacklist-remove":
		return editBlacklist(ctx, repositories.NewBlacklistRepository(db, slogger), args, false)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// watchPending follows the admin notification stream and keeps a local
// pending-queue projection, re-rendering the table whenever the queue
// changes. The token must belong to an approver role.
func watchPending(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("watch needs <server-url> <token>")
	}
	wsBase := strings.Replace(args[0], "https://", "wss://", 1)
	wsBase = strings.Replace(wsBase, "http://", "ws://", 1)

	conn, _, err := websocket.DefaultDialer.Dial(wsBase+"/ws/notifications?token="+args[1], nil)
	if err != nil {
		return fmt.Errorf("connecting to notification stream: %w", err)
	}
	defer conn.Close()

	color.Green.Println("Watching the approval queue (Ctrl+C to stop)")
	queue := projection.NewPendingQueue()
	for {
		var frame struct {
			Kind    event.Kind      `json:"kind"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("stream closed: %w", err)
		}
		if frame.Kind == event.KindServerClosing {
			color.Yellow.Println("Server is shutting down")
			return nil
		}

		evt, err := event.Unmarshal(frame.Kind, frame.Payload)
		if err != nil {
			return err
		}
		before := queue.Len()
		queue.Consume(evt)
		if queue.Len() != before || frame.Kind == event.KindSnapshot {
			renderPending(queue)
		}
	}
}

func renderPending(queue *projection.PendingQueue) {
	color.Green.Printf("%d post(s) waiting for review\n", queue.Len())
	if queue.Len() == 0 {
		return
	}
	table := newTable([]string{"Seq", "ID", "Title", "Author"})
	for _, entry := range queue.Entries() {
		table.Append([]string{
			strconv.FormatUint(entry.Seq, 10),
			entry.Post.String(), entry.Title, entry.Author.String(),
		})
	}
	table.Render()
}

func newTable(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func listPending(ctx context.Context, posts repositories.IPostRepository) error {
	table := newTable([]string{"ID", "Title", "Author", "Submitted"})
	var cursor *string
	total := 0
	for {
		page, next, err := posts.ListByStatus(ctx, domain.StatusPending, 100, cursor)
		if err != nil {
			return err
		}
		for _, p := range page {
			table.Append([]string{
				p.ID.String(), p.Title, p.AuthorID.String(),
				p.UpdatedAt.Format(time.RFC822),
			})
		}
		total += len(page)
		if next == nil {
			break
		}
		cursor = next
	}

	color.Green.Printf("%d post(s) waiting for review\n", total)
	if total > 0 {
		table.Render()
	}
	return nil
}

func listFeatures(ctx context.Context, features repositories.IFeatureRequestRepository) error {
	table := newTable([]string{"ID", "Title", "Status", "Priority", "Created"})
	var cursor *string
	total := 0
	for {
		page, next, err := features.ListFeatureRequests(ctx, 100, cursor)
		if err != nil {
			return err
		}
		for _, fr := range page {
			status := string(fr.Status)
			switch fr.Status {
			case domain.FeatureRequestAccepted:
				status = color.Green.Render(status)
			case domain.FeatureRequestDeclined:
				status = color.Red.Render(status)
			}
			table.Append([]string{
				fr.ID.String(), fr.Title, status,
				strconv.Itoa(fr.Priority), fr.CreatedAt.Format(time.RFC822),
			})
		}
		total += len(page)
		if next == nil {
			break
		}
		cursor = next
	}

	color.Green.Printf("%d feature request(s)\n", total)
	if total > 0 {
		table.Render()
	}
	return nil
}

func triageFeature(ctx context.Context, features repositories.IFeatureRequestRepository, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("triage needs <id> <status> <priority>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid feature request id %q", args[0])
	}
	status := domain.FeatureRequestStatus(args[1])
	if status != domain.FeatureRequestAccepted && status != domain.FeatureRequestDeclined {
		return fmt.Errorf("status must be accepted or declined, got %q", args[1])
	}
	priority, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid priority %q", args[2])
	}

	fr, err := features.GetFeatureRequest(ctx, id)
	if err != nil {
		return err
	}
	fr.Status = status
	fr.Priority = priority
	fr.UpdatedAt = time.Now().UTC()
	if err := features.UpdateFeatureRequest(ctx, &fr); err != nil {
		return err
	}
	color.Green.Printf("Feature request %s -> %s (priority %d)\n", id, status, priority)
	return nil
}

func listBlacklist(ctx context.Context, blacklist repositories.IBlacklistRepository) error {
	words, err := blacklist.LoadWords(ctx)
	if err != nil {
		return err
	}
	color.Green.Printf("%d blacklisted word(s)\n", len(words))
	for _, word := range words {
		fmt.Println(word)
	}
	return nil
}

func editBlacklist(ctx context.Context, blacklist repositories.IBlacklistRepository, words []string, add bool) error {
	if len(words) == 0 {
		return fmt.Errorf("at least one word is required")
	}
	for _, word := range words {
		var err error
		if add {
			err = blacklist.AddWord(ctx, word)
		} else {
			err = blacklist.RemoveWord(ctx, word)
		}
		if err != nil {
			return fmt.Errorf("%q: %w", word, err)
		}
	}
	action := "removed from"
	if add {
		action = "added to"
	}
	color.Green.Printf("%d word(s) %s the blacklist. Restart the server to apply.\n", len(words), action)
	return nil
}
