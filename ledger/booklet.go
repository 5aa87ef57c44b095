/*
booklet.go - Fixed-account booklet capacity allocator

PURPOSE:
  Distributes newly purchased cases across a fixed account's paginated
  booklet. The booklet holds up to 8 pages of 31 cases each (248 total).

ALGORITHM:
  1. Top up existing pages with room, in ascending page order.
  2. While cases remain and the highest page number is below 8, create the
     next page and absorb up to 31 cases into it.
  3. Whatever still remains after page 8 is full is returned as leftover;
     the caller must reject the originating deposit.

DETERMINISM:
  The allocator is a pure function of (pages, casesToAdd). Earlier pages
  are always topped up before later ones are created, so feeding the
  cumulative output back in smaller increments yields the same final
  layout as one call.
*/
package ledger

import "sort"

// Allocate places casesToAdd cases onto the booklet and returns the updated
// page list (ascending page order) plus the number of cases that did not
// fit. The input slice is not mutated.
//
// Leftover is 0 unless the 8x31 ceiling is reached. A caller seeing a
// non-zero leftover must not persist the returned pages.
func Allocate(pages []BookletPage, casesToAdd int) ([]BookletPage, int) {
	updated := make([]BookletPage, len(pages))
	copy(updated, pages)
	sort.Slice(updated, func(i, j int) bool {
		return updated[i].PageNumber < updated[j].PageNumber
	})

	if casesToAdd <= 0 {
		return updated, 0
	}

	remaining := casesToAdd

	// Top up existing pages first.
	for i := range updated {
		if remaining == 0 {
			break
		}
		room := CasesPerPage - updated[i].FilledCases
		if room <= 0 {
			continue
		}
		take := min(remaining, room)
		updated[i].FilledCases += take
		remaining -= take
	}

	// Open new pages until the booklet runs out.
	lastPage := 0
	if n := len(updated); n > 0 {
		lastPage = updated[n-1].PageNumber
	}
	for remaining > 0 && lastPage < MaxPages {
		lastPage++
		take := min(remaining, CasesPerPage)
		updated = append(updated, BookletPage{PageNumber: lastPage, FilledCases: take})
		remaining -= take
	}

	return updated, remaining
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
