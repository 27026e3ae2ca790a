// Package console prints robot runs to a terminal.
//
// Printer implements engine.Observer and can be combined with other
// observers through engine.Observers:
//
//	printer := console.NewPrinter(os.Stdout, gameMap, robot)
//	printer.ShowGrid = true
//	executor := engine.NewExecutor(robot, gameMap, engine.ExecutorOptions{Observer: printer})
package console
