package stage

import "sync"

// Join runs tasks concurrently and waits for every one of them to return.
// The first non-nil error in launch order is returned; siblings of a failed
// task are never interrupted.
func Join(tasks ...func() error) error {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		if task == nil {
			continue
		}
		wg.Add(1)
		go func(i int, task func() error) {
			defer wg.Done()
			errs[i] = task()
		}(i, task)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
