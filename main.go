package main

import "github.com/sanisideup/jira-workspace-sync/cmd"

func main() {
	cmd.Execute()
}
