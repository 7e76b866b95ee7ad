package main

import (
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage the category tree",
		Long:  `List, add, rename and delete categories and their subcategories.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(addSubcategoryCmd())
	cmd.AddCommand(renameCategoryCmd())
	cmd.AddCommand(renameSubcategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())
	cmd.AddCommand(deleteSubcategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every category with its subcategories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			tree, err := newCategoryStore(cmd, client).List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(tree) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No categories found. Use 'finance categories add' to create one."))
				return nil
			}
			printTree(cmd, tree)
			return nil
		},
	}
}

func printTree(cmd *cobra.Command, tree []domain.Category) {
	out := cmd.OutOrStdout()
	for _, c := range tree {
		fmt.Fprintf(out, "%s %s\n", headerStyle.Render(c.Label), mutedStyle.Render("["+c.Value.String()+"]"))
		for _, s := range c.Subcategories {
			fmt.Fprintf(out, "  └ %s %s\n", s.Label, mutedStyle.Render("["+s.Value.String()+"]"))
		}
	}
}

func addCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <label>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			c, err := newCategoryStore(cmd, client).AddCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Added category %s [%s]", c.Label, c.Value)))
			return nil
		},
	}
}

func addSubcategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-sub <category> <label>",
		Short: "Add a subcategory to a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			store := newCategoryStore(cmd, client)
			parent, err := resolveCategory(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			s, err := store.AddSubcategory(cmd.Context(), parent.Value, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Added %s / %s [%s]", parent.Label, s.Label, s.Value)))
			return nil
		},
	}
}

func renameCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <category> <label>",
		Short: "Rename a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			store := newCategoryStore(cmd, client)
			c, err := resolveCategory(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			if err := store.RenameCategory(cmd.Context(), c.Value, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Renamed %s → %s", c.Label, args[1])))
			return nil
		},
	}
}

func renameSubcategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename-sub <category> <subcategory> <label>",
		Short: "Rename a subcategory",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			store := newCategoryStore(cmd, client)
			parent, err := resolveCategory(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			s, err := resolveSubcategory(parent, args[1])
			if err != nil {
				return err
			}
			if err := store.RenameSubcategory(cmd.Context(), s.Value, args[2]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Renamed %s / %s → %s", parent.Label, s.Label, args[2])))
			return nil
		},
	}
}

func deleteCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <category>",
		Short: "Delete a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			store := newCategoryStore(cmd, client)
			c, err := resolveCategory(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			if err := store.DeleteCategory(cmd.Context(), c.Value); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Deleted category "+c.Label))
			return nil
		},
	}
}

func deleteSubcategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-sub <category> <subcategory>",
		Short: "Delete a subcategory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			store := newCategoryStore(cmd, client)
			parent, err := resolveCategory(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			s, err := resolveSubcategory(parent, args[1])
			if err != nil {
				return err
			}
			if err := store.DeleteSubcategory(cmd.Context(), s.Value); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Deleted %s / %s", parent.Label, s.Label)))
			return nil
		},
	}
}
