package store

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Default category seeds for a fresh session.
var (
	DefaultExpenseCategories = []string{
		"Electric Bills",
		"Groceries",
		"Rent / Mortgage",
		"Transport",
		"Entertainment",
		"Dining Out",
		"Subscriptions",
		"Healthcare",
		"Shopping",
		"Utilities",
	}
	DefaultIncomeCategories = []string{
		"Salary",
		"Other",
	}
)

// LoadSeeds reads the category seed files from base, falling back to the
// defaults when a file is missing or empty.
func LoadSeeds(base string) (expense, income []string) {
	expense = readLines(filepath.Join(base, "seed_expense_categories.txt"))
	income = readLines(filepath.Join(base, "seed_income_categories.txt"))
	if len(expense) == 0 {
		expense = DefaultExpenseCategories
	}
	if len(income) == 0 {
		income = DefaultIncomeCategories
	}
	return expense, income
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
