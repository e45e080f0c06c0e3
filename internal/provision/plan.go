// internal/provision/plan.go
//
// Topology planning and identifier checks.  No I/O here; everything is
// derived from validated options.

package provision

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yanizio/itemstore/internal/options"
)

// ErrBadName is returned when a database or container name is not a safe
// SQL identifier.
var ErrBadName = errors.New("invalid identifier")

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var names = func() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return identRe.MatchString(fl.Field().String())
	})
	return v
}()

func checkIdent(what, name string) error {
	if err := names.Var(name, "required,max=64,sqlident"); err != nil {
		return fmt.Errorf("%w: %s %q", ErrBadName, what, name)
	}
	return nil
}

// Plan lists the containers opts needs for itemTypes.  Item types that
// resolve to the same container are merged.  A blank database id means the
// connection's default schema, the same as an empty one.
func Plan(opts options.RepositoryOptions, itemTypes ...string) ([]Container, error) {
	database := ""
	if options.IsSet(opts.DatabaseID) {
		if err := checkIdent("database", opts.DatabaseID); err != nil {
			return nil, err
		}
		database = opts.DatabaseID
	}

	if len(itemTypes) == 0 {
		itemTypes = opts.ItemTypes()
	}

	if !opts.ContainerPerItemType {
		if err := checkIdent("container", opts.ContainerID); err != nil {
			return nil, err
		}
		return []Container{{
			Database:  database,
			Name:      opts.ContainerID,
			ItemTypes: itemTypes,
		}}, nil
	}

	var plan []Container
	index := make(map[string]int, len(itemTypes))
	for _, it := range itemTypes {
		name := opts.ContainerFor(it)
		if err := checkIdent("container", name); err != nil {
			return nil, err
		}
		if i, ok := index[name]; ok {
			plan[i].ItemTypes = append(plan[i].ItemTypes, it)
			continue
		}
		c := Container{
			Database:  database,
			Name:      name,
			ItemTypes: []string{it},
		}
		if co, ok := opts.ContainerOptionsFor(it); ok {
			c.PartitionKeyPath = co.PartitionKeyPath
			c.DefaultTTLSecs = int64(co.DefaultTTL.Seconds())
		}
		index[name] = len(plan)
		plan = append(plan, c)
	}
	return plan, nil
}

//
// DDL
//

func quoteIdent(s string) string { return "`" + s + "`" }

func qualified(c Container) string {
	if c.Database == "" {
		return quoteIdent(c.Name)
	}
	return quoteIdent(c.Database) + "." + quoteIdent(c.Name)
}

func createDatabaseSQL(db string) string {
	return "CREATE DATABASE IF NOT EXISTS " + quoteIdent(db)
}

func createTableSQL(c Container) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(qualified(c))
	b.WriteString(" (" +
		"id VARCHAR(255) NOT NULL, " +
		"item_type VARCHAR(255) NOT NULL, " +
		"partition_key VARCHAR(255) NOT NULL DEFAULT '', " +
		"etag CHAR(36) NOT NULL, " +
		"body JSON NOT NULL, " +
		"ttl_seconds INT NULL, " +
		"created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP, " +
		"updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP, " +
		"PRIMARY KEY (partition_key, id), " +
		"KEY idx_item_type (item_type))")
	if c.PartitionKeyPath != "" || c.DefaultTTLSecs > 0 {
		comment := "partition_key_path=" + c.PartitionKeyPath +
			";default_ttl=" + strconv.FormatInt(c.DefaultTTLSecs, 10)
		b.WriteString(" COMMENT='" + escapeString(comment) + "'")
	}
	return b.String()
}

var stringEscaper = strings.NewReplacer(`\`, `\\`, `'`, `''`)

func escapeString(s string) string { return stringEscaper.Replace(s) }
