package memory

import "fmt"

// allocFixed claims the first free block in the bitmap.
func (p *Pool) allocFixed() ([]byte, error) {
	if p.freeBlocks == 0 {
		return nil, fmt.Errorf("no free fixed blocks: %w", ErrOutOfMemory)
	}
	for i := 0; i < p.numBlocks; i++ {
		word, bit := i/64, uint(i%64)
		if p.bitmap[word]&(1<<bit) != 0 {
			continue
		}
		p.bitmap[word] |= 1 << bit
		p.freeBlocks--
		p.used += p.blockSize
		off := i * p.blockSize
		return p.buf[off : off+p.blockSize], nil
	}
	return nil, fmt.Errorf("bitmap out of sync with free count: %w", ErrOutOfMemory)
}

// freeFixed releases the block starting at the given arena offset.
func (p *Pool) freeFixed(off int) error {
	if off%p.blockSize != 0 {
		return ErrInvalidPointer
	}
	i := off / p.blockSize
	if i >= p.numBlocks {
		return ErrInvalidPointer
	}
	word, bit := i/64, uint(i%64)
	if p.bitmap[word]&(1<<bit) == 0 {
		return ErrInvalidPointer // double free
	}
	p.bitmap[word] &^= 1 << bit
	p.freeBlocks++
	p.used -= p.blockSize
	p.numFrees++
	return nil
}
