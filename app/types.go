package app

// HTTPMethods lists the methods ANY/Mount register handlers for.
var HTTPMethods = commonMethods
