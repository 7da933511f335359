package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/garyjia/expense-capture/internal/application/confirmation"
	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

const confirmHelp = `Commands:
  show                              print the draft
  set <field> <value>               vendor, bill_date, total_amount, tax_amount,
                                    currency, category, payment_method, bill_no
  item add                          append an empty item
  item rm <n>                       remove item n
  item set <n> <field> <value>      description, quantity, rate, amount, tax
  preview                           show or hide the source document
  history                           list edits made so far
  commit                            validate and save the bill
  cancel                            discard the draft
  help                              this text`

// confirmLoop drives one confirmation session from line commands
type confirmLoop struct {
	session   *confirmation.Session
	retriever port.FileRetriever
	userID    string
	out       io.Writer
	tempDir   string
}

// runConfirmLoop reads commands until the session is committed or cancelled.
// It returns the committed bill id, or "" when the draft was cancelled.
// End of input cancels.
func runConfirmLoop(ctx context.Context, s *confirmation.Session, retriever port.FileRetriever, userID string, in io.Reader, out io.Writer) (string, error) {
	l := &confirmLoop{
		session:   s,
		retriever: retriever,
		userID:    userID,
		out:       out,
		tempDir:   os.TempDir(),
	}

	fmt.Fprintln(out, "The bill needs confirmation. Type 'help' for commands.")
	l.show()
	if s.Preview() {
		l.openPreview(ctx)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		id, done, err := l.handle(ctx, scanner.Text())
		if err != nil {
			return "", err
		}
		if done {
			return id, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	fmt.Fprintln(out)
	if err := s.Cancel(ctx); err != nil && !errors.Is(err, confirmation.ErrClosed) {
		return "", err
	}
	fmt.Fprintln(out, "Draft discarded.")
	return "", nil
}

// handle runs one command line. done is true once the session has closed.
func (l *confirmLoop) handle(ctx context.Context, line string) (id string, done bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false, nil
	}

	switch fields[0] {
	case "help", "?":
		fmt.Fprintln(l.out, confirmHelp)
	case "show":
		l.show()
	case "set":
		if len(fields) < 2 {
			fmt.Fprintln(l.out, "usage: set <field> <value>")
			break
		}
		value := restAfter(line, 2)
		l.report(l.session.EditField(ctx, entity.Field(fields[1]), value))
	case "item":
		l.item(ctx, line, fields)
	case "preview":
		if l.session.TogglePreview() {
			l.openPreview(ctx)
		} else if l.session.FilePath() == "" {
			fmt.Fprintln(l.out, "No source document for this bill.")
		} else {
			fmt.Fprintln(l.out, "Preview hidden.")
		}
	case "history":
		history := l.session.History()
		if len(history) == 0 {
			fmt.Fprintln(l.out, "No edits yet.")
		}
		for i, cmd := range history {
			fmt.Fprintf(l.out, "%d. %s\n", i+1, cmd)
		}
	case "commit":
		return l.commit(ctx)
	case "cancel":
		if err := l.session.Cancel(ctx); err != nil {
			return "", false, err
		}
		fmt.Fprintln(l.out, "Draft discarded.")
		return "", true, nil
	default:
		fmt.Fprintf(l.out, "unknown command %q, type 'help'\n", fields[0])
	}
	return "", false, nil
}

func (l *confirmLoop) item(ctx context.Context, line string, fields []string) {
	if len(fields) < 2 {
		fmt.Fprintln(l.out, "usage: item add | item rm <n> | item set <n> <field> <value>")
		return
	}
	switch fields[1] {
	case "add":
		if l.report(l.session.AddItem(ctx)) {
			fmt.Fprintf(l.out, "Added item %d.\n", len(l.session.Draft().Items))
		}
	case "rm":
		if len(fields) != 3 {
			fmt.Fprintln(l.out, "usage: item rm <n>")
			return
		}
		n, ok := l.itemNumber(fields[2])
		if ok {
			l.report(l.session.RemoveItem(ctx, n))
		}
	case "set":
		if len(fields) < 4 {
			fmt.Fprintln(l.out, "usage: item set <n> <field> <value>")
			return
		}
		n, ok := l.itemNumber(fields[2])
		if ok {
			l.report(l.session.EditItem(ctx, n, entity.ItemField(fields[3]), restAfter(line, 4)))
		}
	default:
		fmt.Fprintf(l.out, "unknown item command %q\n", fields[1])
	}
}

// itemNumber converts a 1-based item number to an index
func (l *confirmLoop) itemNumber(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		fmt.Fprintf(l.out, "invalid item number %q\n", s)
		return 0, false
	}
	return n - 1, true
}

func (l *confirmLoop) commit(ctx context.Context) (string, bool, error) {
	id, err := l.session.Commit(ctx)
	switch {
	case err == nil:
		fmt.Fprintf(l.out, "Bill %s saved.\n", id)
		return id, true, nil
	case errors.Is(err, confirmation.ErrValidationFailed):
		fmt.Fprintln(l.out, "Please fix the highlighted fields:")
		formatDraft(l.out, l.session.Draft(), l.session.Errors())
	case errors.Is(err, confirmation.ErrCommitFailed):
		fmt.Fprintf(l.out, "Save failed: %v\nYour edits are kept; try 'commit' again.\n", err)
	case errors.Is(err, confirmation.ErrBusy):
		fmt.Fprintln(l.out, "A save is already in progress.")
	default:
		return "", false, err
	}
	return "", false, nil
}

func (l *confirmLoop) show() {
	if id := l.session.BillID(); id != "" {
		fmt.Fprintf(l.out, "bill %s\n", id)
	}
	formatDraft(l.out, l.session.Draft(), l.session.Errors())
}

// report prints an edit failure and returns whether the edit applied
func (l *confirmLoop) report(err error) bool {
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, entity.ErrUnknownField), errors.Is(err, entity.ErrItemIndex), errors.Is(err, entity.ErrInvalidNumber):
		fmt.Fprintf(l.out, "%v\n", err)
	case errors.Is(err, confirmation.ErrBusy):
		fmt.Fprintln(l.out, "A save is in progress; try again shortly.")
	default:
		fmt.Fprintf(l.out, "edit failed: %v\n", err)
	}
	return false
}

// openPreview fetches the source document inline and leaves it in a temp file
func (l *confirmLoop) openPreview(ctx context.Context) {
	file, err := l.retriever.Retrieve(ctx, port.RetrieveRequest{
		UserID:  l.userID,
		Path:    l.session.FilePath(),
		Preview: true,
	})
	if err != nil {
		if errors.Is(err, port.ErrFileNotFound) {
			fmt.Fprintln(l.out, "Preview unavailable: file not found.")
			return
		}
		fmt.Fprintf(l.out, "Preview unavailable: %v\n", err)
		return
	}

	name := file.FileName
	if name == "" {
		name = filepath.Base(l.session.FilePath())
	}
	f, err := os.CreateTemp(l.tempDir, "bill-preview-*"+filepath.Ext(name))
	if err != nil {
		fmt.Fprintf(l.out, "Preview unavailable: %v\n", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(file.Data); err != nil {
		fmt.Fprintf(l.out, "Preview unavailable: %v\n", err)
		return
	}
	fmt.Fprintf(l.out, "Source document (%s) at %s\n", file.ContentType, f.Name())
}

// restAfter returns the text following the first n words of line
func restAfter(line string, n int) string {
	rest := strings.TrimSpace(line)
	for i := 0; i < n; i++ {
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			return ""
		}
		rest = strings.TrimSpace(rest[idx:])
	}
	return rest
}
