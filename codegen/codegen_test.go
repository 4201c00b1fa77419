package codegen

import (
	"strings"
	"sync"
	"testing"
)

func TestNewBase62(t *testing.T) {
	gen := NewBase62()
	if gen == nil {
		t.Fatal("NewBase62() returned nil")
	}
}

func TestBase62Generator_Generate(t *testing.T) {
	t.Run("generates code of correct length", func(t *testing.T) {
		gen := NewBase62()

		lengths := []int{1, 5, 6, 7, 10, 15, 20, 32, 64}
		for _, length := range lengths {
			code, err := gen.Generate(length)
			if err != nil {
				t.Fatalf("Generate(%d) unexpected error: %v", length, err)
			}

			if len(code) != length {
				t.Errorf("Generate(%d) returned length %d, want %d", length, len(code), length)
			}
		}
	})

	t.Run("generates unique codes", func(t *testing.T) {
		gen := NewBase62()
		seen := make(map[string]bool)

		// Generate 1000 codes and ensure they're all unique
		for i := 0; i < 1000; i++ {
			code, err := gen.Generate(10)
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}

			if seen[code] {
				t.Errorf("Generate() produced duplicate code: %q", code)
			}
			seen[code] = true
		}

		if len(seen) != 1000 {
			t.Errorf("expected 1000 unique codes, got %d", len(seen))
		}
	})

	t.Run("generates only valid base62 characters", func(t *testing.T) {
		gen := NewBase62()

		for _, length := range []int{10, 50, 100} {
			code, err := gen.Generate(length)
			if err != nil {
				t.Fatalf("Generate(%d) unexpected error: %v", length, err)
			}

			for i, char := range code {
				if !strings.ContainsRune(base62Chars, char) {
					t.Errorf("Generate(%d) produced invalid character %c at position %d", length, char, i)
				}
			}
		}
	})

	t.Run("codes are url-safe", func(t *testing.T) {
		gen := NewBase62()

		for range 100 {
			code, err := gen.Generate(7)
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}
			if strings.ContainsAny(code, "/?#%&= ") {
				t.Errorf("Generate() produced code with reserved URL characters: %q", code)
			}
		}
	})

	t.Run("returns error for zero length", func(t *testing.T) {
		gen := NewBase62()

		_, err := gen.Generate(0)
		if err == nil {
			t.Error("Generate(0) expected error, got nil")
		}

		expectedMsg := "length must be positive"
		if err.Error() != expectedMsg {
			t.Errorf("error message = %q, want %q", err.Error(), expectedMsg)
		}
	})

	t.Run("returns error for negative length", func(t *testing.T) {
		gen := NewBase62()

		_, err := gen.Generate(-1)
		if err == nil {
			t.Error("Generate(-1) expected error, got nil")
		}

		expectedMsg := "length must be positive"
		if err.Error() != expectedMsg {
			t.Errorf("error message = %q, want %q", err.Error(), expectedMsg)
		}
	})

	t.Run("concurrent generation is safe", func(t *testing.T) {
		gen := NewBase62()
		const goroutines = 50
		const iterations = 100

		var wg sync.WaitGroup
		results := make(chan string, goroutines*iterations)
		errChan := make(chan error, goroutines*iterations)

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < iterations; j++ {
					code, err := gen.Generate(8)
					if err != nil {
						errChan <- err
						return
					}
					results <- code
				}
			}()
		}

		wg.Wait()
		close(results)
		close(errChan)

		// Check for errors
		for err := range errChan {
			t.Errorf("concurrent Generate() error: %v", err)
		}

		// Check for uniqueness
		seen := make(map[string]bool)
		count := 0
		for code := range results {
			count++
			if seen[code] {
				t.Errorf("concurrent generation produced duplicate: %q", code)
			}
			seen[code] = true
		}

		expectedCount := goroutines * iterations
		if count != expectedCount {
			t.Errorf("expected %d codes, got %d", expectedCount, count)
		}
	})

	t.Run("generates varied output", func(t *testing.T) {
		gen := NewBase62()

		// Ensure the generator produces varied output (not all the same)
		codes := make(map[string]int)
		for range 100 {
			code, err := gen.Generate(10)
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}
			codes[code]++
		}

		if len(codes) < 95 {
			t.Errorf("expected at least 95 distinct codes out of 100, got %d", len(codes))
		}
	})
}
