package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/sdrkit/sdr"
	"github.com/joshuapare/sdrkit/sdr/catalog"
	"github.com/joshuapare/sdrkit/sdr/sdrstring"
)

// typeString tags catalogue entries whose object is an sdrstring.
const typeString byte = 's'

func init() {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List and edit the catalogue of named objects",
	}
	cmd.AddCommand(newCatalogListCmd(), newCatalogGetCmd(), newCatalogPutCmd(), newCatalogRmCmd())
	rootCmd.AddCommand(cmd)
}

func newCatalogListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <name>",
		Short: "List catalogue entries in name order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogList(args)
		},
	}
}

type catalogEntry struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Object string `json:"object"`
	Value  string `json:"value,omitempty"`
}

func runCatalogList(args []string) error {
	return withSDR(args[0], func(s *sdr.SDR) error {
		var entries []catalogEntry
		err := inTxn(s, func(t *sdr.Txn) error {
			return catalog.Walk(t, func(e catalog.Entry) (bool, error) {
				ce := catalogEntry{Name: e.Name, Type: typeName(e.Type), Object: e.Object.String()}
				if e.Type == typeString {
					v, err := sdrstring.Read(t, e.Object)
					if err != nil {
						return false, err
					}
					ce.Value = v
				}
				entries = append(entries, ce)
				return true, nil
			})
		})
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(entries)
		}
		for _, e := range entries {
			if e.Value != "" {
				printInfo("%-31s %-8s %s %q\n", e.Name, e.Type, e.Object, e.Value)
			} else {
				printInfo("%-31s %-8s %s\n", e.Name, e.Type, e.Object)
			}
		}
		return nil
	})
}

func newCatalogGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name> <entry>",
		Short: "Print a string stored under an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogGet(args)
		},
	}
}

func runCatalogGet(args []string) error {
	return withSDR(args[0], func(s *sdr.SDR) error {
		return inTxn(s, func(t *sdr.Txn) error {
			e, found, err := catalog.Find(t, args[1])
			switch {
			case err != nil:
				return err
			case !found:
				return fmt.Errorf("entry %q: %w", args[1], catalog.ErrNotFound)
			case e.Type != typeString:
				return fmt.Errorf("entry %q holds a %s object", args[1], typeName(e.Type))
			}
			v, err := sdrstring.Read(t, e.Object)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(catalogEntry{Name: e.Name, Type: typeName(e.Type), Object: e.Object.String(), Value: v})
			}
			printInfo("%s\n", v)
			return nil
		})
	})
}

func newCatalogPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <name> <entry> <text>",
		Short: "Store a string under a new catalogue entry",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogPut(args)
		},
	}
}

func runCatalogPut(args []string) error {
	return withSDR(args[0], func(s *sdr.SDR) error {
		return inTxn(s, func(t *sdr.Txn) error {
			obj, err := sdrstring.Create(t, args[2])
			if err != nil {
				return err
			}
			if err := catalog.Put(t, args[1], typeString, obj); err != nil {
				return err
			}
			printVerbose("Stored %d bytes at %s\n", len(args[2]), obj)
			return nil
		})
	})
}

func newCatalogRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name> <entry>",
		Short: "Remove a catalogue entry, freeing a string it holds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogRm(args)
		},
	}
}

func runCatalogRm(args []string) error {
	return withSDR(args[0], func(s *sdr.SDR) error {
		return inTxn(s, func(t *sdr.Txn) error {
			e, found, err := catalog.Find(t, args[1])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("entry %q: %w", args[1], catalog.ErrNotFound)
			}
			if err := catalog.Remove(t, args[1]); err != nil {
				return err
			}
			if e.Type == typeString {
				return sdrstring.Destroy(t, e.Object)
			}
			return nil
		})
	})
}

func typeName(t byte) string {
	if t == typeString {
		return "string"
	}
	return fmt.Sprintf("type-%d", t)
}
