// Package database provides configuration loading, the bun connection
// manager and connection factory, query hooks, logging and SQL error
// classification for the rowkit data services.
package database
