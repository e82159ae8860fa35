package main

import (
	"fmt"
	"time"
)

// syncOverdue flags active installment plans past their due date as overdue.
// Meant to be run daily from a cron job.
func (cli *commandLine) syncOverdue() error {
	count, err := cli.billSvc.SyncOverdue(time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Printf("%d plan(s) marked overdue\n", count)
	return nil
}
