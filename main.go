package main

import "github.com/rasnes/stock-warehouse-etl/cmd"

func main() {
	cmd.Execute()
}
