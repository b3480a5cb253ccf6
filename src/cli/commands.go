package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"mongomap/src/codecs"
	"mongomap/src/collections"
	"mongomap/src/helpers"
	"mongomap/src/objects"
)

var (
	whereFlags []string
	pageFlag   int64
	sizeFlag   int64
	fieldFlag  string

	databasesCmd = &cobra.Command{
		Use:   "databases",
		Short: "List the databases on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := conn.ListDatabases(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}

	collectionsCmd = &cobra.Command{
		Use:   "collections <database>",
		Short: "List the collections of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := conn.ListCollections(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}

	countCmd = &cobra.Command{
		Use:   "count <database.collection>",
		Short: "Count the documents matching a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, filter, err := openCollection(args[0])
			if err != nil {
				return err
			}
			n, err := coll.Count(cmd.Context(), filter)
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}

	listCmd = &cobra.Command{
		Use:   "list <database.collection>",
		Short: "Print matching documents as JSON, one per line",
		Long:  "Print matching documents as JSON, one per line. Use --page/--page-size to window the result and --field to print a single field's values instead of whole documents.",
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, filter, err := openCollection(args[0])
			if err != nil {
				return err
			}
			opts := collections.ListOptions{Filter: filter, Page: pageFlag, PageSize: sizeFlag}
			if fieldFlag != "" {
				values, err := coll.ListField(cmd.Context(), fieldFlag, opts)
				if err != nil {
					return err
				}
				for _, value := range values {
					line, err := codecs.Encode(value)
					if err != nil {
						return err
					}
					fmt.Println(string(line))
				}
				return nil
			}
			docs, err := coll.ListRaw(cmd.Context(), opts)
			if err != nil {
				return err
			}
			for _, doc := range docs {
				line, err := codecs.EncodeOrdered(doc)
				if err != nil {
					return err
				}
				fmt.Println(string(line))
			}
			return nil
		},
		Args: cobra.ExactArgs(1),
	}

	addUserReadOnly bool
	addUserDB       string

	addUserCmd = &cobra.Command{
		Use:   "adduser <name> <password>",
		Short: "Provision a user on an unauthenticated server (bootstrap only)",
		Long:  "Provision a user on an unauthenticated server. This is a bootstrap primitive: it must be disabled (by enabling authentication) before the server is exposed.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return conn.AddUser(cmd.Context(), args[0], args[1], addUserReadOnly, addUserDB)
		},
	}
)

func init() {
	countCmd.Flags().StringArrayVar(&whereFlags, "where", nil, "Field equality constraint in the form key=value (repeatable)")
	listCmd.Flags().StringArrayVar(&whereFlags, "where", nil, "Field equality constraint in the form key=value (repeatable)")
	listCmd.Flags().Int64Var(&pageFlag, "page", 0, "1-indexed page of results to print (0 disables paging)")
	listCmd.Flags().Int64Var(&sizeFlag, "page-size", 0, "Number of results per page")
	listCmd.Flags().StringVar(&fieldFlag, "field", "", "Print only this field's values")
	addUserCmd.Flags().BoolVar(&addUserReadOnly, "readonly", false, "Grant read-only access")
	addUserCmd.Flags().StringVar(&addUserDB, "db", "", "Database the user may access (default: all databases)")

	RootCmd.AddCommand(databasesCmd, collectionsCmd, countCmd, listCmd, addUserCmd)
}

// openCollection binds a location string to a schemaless collection handle
// and turns the --where flags into an equality filter.
func openCollection(location string) (*collections.Collection, bson.M, error) {
	handle, err := objects.NewHandle(location, nil, conn.Store(), logger)
	if err != nil {
		return nil, nil, err
	}
	filter := bson.M{}
	for _, clause := range whereFlags {
		key, value, found := strings.Cut(clause, "=")
		if !found {
			return nil, nil, fmt.Errorf("invalid --where clause %q (expected key=value)", clause)
		}
		filter[key] = helpers.StripQuotes(value)
	}
	return collections.New(handle), filter, nil
}
