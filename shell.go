package esbench

import (
	"bufio"
	"context"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
)

var (
	regexCmd = regexp.MustCompile(`\s+`)
)

// Shell is an interactive client issuing single operations.
type Shell struct {
	props     Properties
	dbFactory DBFactory
	in        io.Reader
}

func NewShell(props Properties, dbFactory DBFactory) *Shell {
	if dbFactory == nil {
		dbFactory = NewDB
	}
	return &Shell{
		props:     props,
		dbFactory: dbFactory,
		in:        os.Stdin,
	}
}

func (self *Shell) SetInput(r io.Reader) {
	self.in = r
}

func (self *Shell) Main(ctx context.Context) error {
	Printf("esbench Command Line Client")
	Printf(`Type "help" for command line help`)

	db, err := OpenDB(self.dbFactory, self.props.GetDefault(PropertyDB, PropertyDBDefault), self.props.Clone())
	if err != nil {
		return err
	}
	defer db.Cleanup()

	Printf("Connected.")
	scanner := bufio.NewScanner(self.in)
	indexName := self.props.GetDefault(PropertyIndexName, PropertyIndexNameDefault)
	docType := self.props.GetDefault(PropertyDocType, PropertyDocTypeDefault)
	for {
		PromptPrintf("> ")
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		startTime := time.Now()
		switch line {
		case "":
			continue
		case "help":
			self.help()
			continue
		case "quit":
			return nil
		}
		parts := regexCmd.Split(line, -1)
		length := len(parts)
		switch parts[0] {
		case "index":
			switch length {
			case 1:
				Printf(`Using index "%s"`, indexName)
			case 2:
				indexName = parts[1]
				Printf(`Using index "%s"`, indexName)
			default:
				// `index id v0|v1|...`, values may contain spaces
				id := parts[1]
				rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(line, "index")), id))
				err := db.Index(ctx, indexName, docType, id, ParseAppendLine(rest))
				if err != nil {
					Printf("Error: %s", err)
				} else {
					Printf("Result: OK")
				}
			}
		case "count":
			count, err := db.Count(ctx, indexName)
			if err != nil {
				Printf("Error: %s", err)
			} else {
				Printf("%d records", count)
			}
		case "get":
			if length != 2 {
				Printf(`Error: syntax is "get id"`)
				break
			}
			doc, err := db.Get(ctx, indexName, docType, parts[1])
			if err != nil {
				Printf("Error: %s", err)
				break
			}
			Printf("%s", ConcatDocumentStr(doc))
		case "search":
			q, err := ParseQueryLine(strings.TrimSpace(strings.TrimPrefix(line, "search")))
			if err != nil {
				Printf(`Error: syntax is "search fieldIndex|text": %s`, err)
				break
			}
			size, err := self.props.GetInt64(PropertySearchSize, PropertySearchSizeDefault)
			if err != nil {
				Printf("Error: %s", err)
				break
			}
			hits, err := db.Search(ctx, indexName, q, int(size))
			if err != nil {
				Printf("Error: %s", err)
				break
			}
			Printf("%d hits", DrainHits(hits))
			for i, hit := range hits {
				Printf("Hit %d: %s", i, hit.ID)
			}
		default:
			Printf(`Error: unknown command "%s"`, parts[0])
		}
		Printf("%d us", NanosecondToMicrosecond(time.Since(startTime).Nanoseconds()))
	}
	return scanner.Err()
}

func (self *Shell) help() {
	helpFormat := `Commands
  count - Count the documents of the index
  get id - Get a document
  search fieldIndex|text - Search field<fieldIndex> for text
  index id v0|v1|... - Index a document with values for field0, field1, ...
  index [name] - Get or [set] the name of the index
  quit - Quit`
	Printf("%s", helpFormat)
}
