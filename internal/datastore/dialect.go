package datastore

import "fmt"

type dialect struct {
	createTable string
	insert      string
	count       string
}

var dialects = map[string]dialect{
	DriverMySQL: {
		createTable: "CREATE TABLE IF NOT EXISTS %s (" +
			"id INT AUTO_INCREMENT PRIMARY KEY," +
			"name VARCHAR(100)," +
			"age INT) ENGINE=InnoDB",
		insert: "INSERT INTO %s (name, age) VALUES (?, ?)",
		count:  "SELECT COUNT(*) FROM %s",
	},
	DriverSQLite: {
		createTable: "CREATE TABLE IF NOT EXISTS %s (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT," +
			"name VARCHAR(100)," +
			"age INTEGER)",
		insert: "INSERT INTO %s (name, age) VALUES (?, ?)",
		count:  "SELECT COUNT(*) FROM %s",
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	return d, nil
}
