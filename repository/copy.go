package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/Bames007/sauni/docstore"
)

// CopyAll copies every payment, application and per-student payment
// document from src to dst, overwriting what dst holds at the same paths.
// progress, when set, is called after each document. Documents are written
// one at a time, so a failed copy can simply be rerun.
func CopyAll(ctx context.Context, src, dst docstore.Store, progress func(path string)) (int, error) {
	count := 0
	copyChildren := func(parent string) (map[string]docstore.Document, error) {
		children, err := src.List(ctx, parent)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", parent, err)
		}
		keys := make([]string, 0, len(children))
		for key := range children {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			p := docstore.Join(parent, key)
			if err := dst.Set(ctx, p, children[key]); err != nil {
				return nil, fmt.Errorf("write %s: %w", p, err)
			}
			count++
			if progress != nil {
				progress(p)
			}
		}
		return children, nil
	}

	payments, err := copyChildren(paymentsRoot)
	if err != nil {
		return count, err
	}
	applications, err := copyChildren(studentsRoot)
	if err != nil {
		return count, err
	}

	// A student can have payment copies without an application document.
	seen := make(map[string]bool, len(applications))
	for pid := range applications {
		seen[pid] = true
	}
	for _, doc := range payments {
		if pid, ok := doc["prospectiveId"].(string); ok && docstore.ValidKey(pid) {
			seen[pid] = true
		}
	}
	students := make([]string, 0, len(seen))
	for pid := range seen {
		students = append(students, pid)
	}
	sort.Strings(students)

	for _, pid := range students {
		if _, err := copyChildren(StudentPaymentsPath(pid)); err != nil {
			return count, err
		}
	}
	return count, nil
}
