// mongo-shell-mcp is an MCP server that runs code in a persistent,
// interactive mongo shell.
package main

func main() {
	Execute()
}
