// Copyright 2024 The exodus Authors
// This file is part of the exodus library.
//
// The exodus library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The exodus library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the exodus library. If not, see <http://www.gnu.org/licenses/>.

package exodus

import (
	"sync"

	"github.com/zkrollup/exodus/types"
)

// Progress is the recover-progress wire shape.
type Progress struct {
	CurrentBlock types.BlockNumber `json:"current_block"`
	TotalBlocks  types.BlockNumber `json:"total_blocks"`
	Completed    bool              `json:"completed"`
}

// RecoverProgress tracks how far recovery has come; the API stays up during
// recovery but answers most endpoints with RecoverStateUnfinished until it
// completes.
type RecoverProgress struct {
	mu       sync.RWMutex
	progress Progress
}

// NewRecoverProgress starts at zero, not completed.
func NewRecoverProgress(total types.BlockNumber) *RecoverProgress {
	return &RecoverProgress{progress: Progress{TotalBlocks: total}}
}

// Update advances the current block and refreshes the completion flag.
func (p *RecoverProgress) Update(current types.BlockNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress.CurrentBlock = current
	p.progress.Completed = p.progress.TotalBlocks > 0 && current >= p.progress.TotalBlocks
}

// SetTotal refreshes the contract's total verified block count.
func (p *RecoverProgress) SetTotal(total types.BlockNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress.TotalBlocks = total
	p.progress.Completed = total > 0 && p.progress.CurrentBlock >= total
}

// MarkCompleted forces the completed flag.
func (p *RecoverProgress) MarkCompleted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress.Completed = true
}

// IsCompleted reports recovery completion.
func (p *RecoverProgress) IsCompleted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progress.Completed
}

// Get returns a copy of the progress.
func (p *RecoverProgress) Get() Progress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progress
}
